// Package gate exposes the review pipeline over HTTP.
package gate

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/service/gate"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
	"github.com/hireloop/ats-api/pkg/httputil"
)

type Handler struct {
	service *gate.Service
}

func NewHandler(service *gate.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	apps := rg.Group("/applications")
	apps.POST("", h.CreateApplication)
	apps.GET("/:id", h.GetApplication)
	apps.GET("/:id/state", h.GetState)
	apps.GET("/:id/transitions", h.ListTransitions)

	gates := apps.Group("/:id/gates/:gate")
	gates.POST("/enter", h.EnterGate)
	gates.POST("/approve", h.Approve)
	gates.POST("/deny", h.Deny)
	gates.POST("/request-info", h.RequestInfo)
	gates.POST("/provide-info", h.ProvideInfo)
	gates.POST("/reopen", h.Reopen)
}

type createApplicationRequest struct {
	CandidateID    uuid.UUID `json:"candidate_id" binding:"required"`
	CandidateName  string    `json:"candidate_name" binding:"required"`
	CandidateEmail string    `json:"candidate_email" binding:"required,email"`
	JobID          uuid.UUID `json:"job_id" binding:"required"`
	JobTitle       string    `json:"job_title" binding:"required"`
	CompanyName    string    `json:"company_name" binding:"required"`
	Pipeline       []string  `json:"pipeline" binding:"required,min=1"`
}

func (h *Handler) CreateApplication(c *gin.Context) {
	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	app := &model.Application{
		CandidateID:    req.CandidateID,
		CandidateName:  req.CandidateName,
		CandidateEmail: req.CandidateEmail,
		JobID:          req.JobID,
		JobTitle:       req.JobTitle,
		CompanyName:    req.CompanyName,
		Pipeline:       req.Pipeline,
	}
	if err := h.service.CreateApplication(c.Request.Context(), app); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, app)
}

func (h *Handler) GetApplication(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	app, err := h.service.GetApplication(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, app)
}

func (h *Handler) GetState(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	state, err := h.service.GetState(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, state)
}

func (h *Handler) ListTransitions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	transitions, err := h.service.ListTransitions(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, transitions)
}

type enterRequest struct {
	Actor string `json:"actor" binding:"required,actor"`
}

func (h *Handler) EnterGate(c *gin.Context) {
	id, gateName, ok := gatePath(c)
	if !ok {
		return
	}
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	actor := model.Actor(req.Actor)
	state, err := h.service.EnterGate(c.Request.Context(), id, gateName, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, state)
}

type approveRequest struct {
	Actor string `json:"actor" binding:"required,actor"`
	Notes string `json:"notes"`
}

func (h *Handler) Approve(c *gin.Context) {
	id, gateName, ok := gatePath(c)
	if !ok {
		return
	}
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	actor := model.Actor(req.Actor)
	state, err := h.service.Approve(c.Request.Context(), id, gateName, actor, req.Notes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, state)
}

type denyRequest struct {
	Actor    string `json:"actor" binding:"required,actor"`
	Reason   string `json:"reason" binding:"required"`
	Feedback string `json:"feedback"`
}

func (h *Handler) Deny(c *gin.Context) {
	id, gateName, ok := gatePath(c)
	if !ok {
		return
	}
	var req denyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	actor := model.Actor(req.Actor)
	state, err := h.service.Deny(c.Request.Context(), id, gateName, actor, req.Reason, req.Feedback)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, state)
}

type requestInfoRequest struct {
	Actor     string   `json:"actor" binding:"required,actor"`
	Questions []string `json:"questions" binding:"required,min=1"`
}

func (h *Handler) RequestInfo(c *gin.Context) {
	id, gateName, ok := gatePath(c)
	if !ok {
		return
	}
	var req requestInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	actor := model.Actor(req.Actor)
	state, err := h.service.RequestInfo(c.Request.Context(), id, gateName, actor, req.Questions)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, state)
}

type provideInfoRequest struct {
	Actor   string   `json:"actor" binding:"required,actor"`
	Answers []string `json:"answers" binding:"required,min=1"`
}

func (h *Handler) ProvideInfo(c *gin.Context) {
	id, gateName, ok := gatePath(c)
	if !ok {
		return
	}
	var req provideInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	actor := model.Actor(req.Actor)
	state, err := h.service.ProvideInfo(c.Request.Context(), id, gateName, actor, req.Answers)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, state)
}

type reopenRequest struct {
	Actor  string `json:"actor" binding:"required,actor"`
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) Reopen(c *gin.Context) {
	id, gateName, ok := gatePath(c)
	if !ok {
		return
	}
	var req reopenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	actor := model.Actor(req.Actor)
	state, err := h.service.Reopen(c.Request.Context(), id, gateName, actor, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, state)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid application ID", err))
		return uuid.Nil, false
	}
	return id, true
}

func gatePath(c *gin.Context) (uuid.UUID, string, bool) {
	id, ok := pathID(c)
	if !ok {
		return uuid.Nil, "", false
	}
	gateName := c.Param("gate")
	if gateName == "" {
		httputil.RespondWithError(c, apperrors.NewBadRequest("gate name is required", nil))
		return uuid.Nil, "", false
	}
	return id, gateName, true
}

// Package outbox exposes operator endpoints over parked events: exhausted
// outbox rows awaiting replay and consumer dead letters.
package outbox

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hireloop/ats-api/internal/repository"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
	"github.com/hireloop/ats-api/pkg/httputil"
	"github.com/hireloop/ats-api/pkg/logger"
)

const defaultListLimit = 100

type Handler struct {
	outbox    repository.OutboxRepository
	processed repository.ProcessedEventRepository
	logger    *logger.Logger
}

func NewHandler(outbox repository.OutboxRepository, processed repository.ProcessedEventRepository, log *logger.Logger) *Handler {
	return &Handler{outbox: outbox, processed: processed, logger: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	ops := rg.Group("/outbox")
	ops.GET("/exhausted", h.ListExhausted)
	ops.POST("/exhausted/:id/replay", h.Replay)
	ops.GET("/dead-letters/:consumer", h.ListDeadLetters)
}

func (h *Handler) ListExhausted(c *gin.Context) {
	events, err := h.outbox.ListExhausted(c.Request.Context(), listLimit(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, events)
}

// Replay returns an exhausted event to the pending pool with a fresh
// attempt budget. The relay picks it up on its next cycle.
func (h *Handler) Replay(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid event ID", err))
		return
	}

	if err := h.outbox.Replay(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.logger.Info("outbox event replayed", "id", id, "requested_by", c.GetString("user_email"))
	httputil.RespondWithSuccess(c, gin.H{"replayed": id})
}

func (h *Handler) ListDeadLetters(c *gin.Context) {
	consumer := c.Param("consumer")
	letters, err := h.processed.ListDeadLetters(c.Request.Context(), consumer, listLimit(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, letters)
}

func listLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/hireloop/ats-api/internal/middleware"
)

// Handler registers a group of routes.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit rate.Limit
	RateBurst int
	// OperatorActorTypes may call the outbox replay endpoints.
	OperatorActorTypes []string
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	gateH   Handler
	outboxH Handler
	healthH Handler
	config  Config
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	gateH Handler,
	outboxH Handler,
	healthH Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.RegisterValidators()
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
	)

	if config.RateLimit > 0 {
		engine.Use(middleware.RateLimit(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}))
	}

	return &Router{
		engine:  engine,
		auth:    auth,
		gateH:   gateH,
		outboxH: outboxH,
		healthH: healthH,
		config:  config,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	r.healthH.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.gateH.RegisterRoutes(protected)

	operator := protected.Group("")
	operator.Use(r.auth.RequireActorType(r.config.OperatorActorTypes...))
	r.outboxH.RegisterRoutes(operator)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

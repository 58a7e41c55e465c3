package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hireloop/ats-api/internal/config"
	gateHandler "github.com/hireloop/ats-api/internal/handler/gate"
	healthHandler "github.com/hireloop/ats-api/internal/handler/health"
	outboxHandler "github.com/hireloop/ats-api/internal/handler/outbox"
	"github.com/hireloop/ats-api/internal/middleware"
	"github.com/hireloop/ats-api/internal/repository/postgres"
	"github.com/hireloop/ats-api/internal/router"
	gateService "github.com/hireloop/ats-api/internal/service/gate"
	"github.com/hireloop/ats-api/internal/service/outbox"
	"github.com/hireloop/ats-api/pkg/auth"
	"github.com/hireloop/ats-api/pkg/logger"
	"github.com/hireloop/ats-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := &logger.Logger{ZL: log.Logger}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	appRepo := postgres.NewApplicationRepository(base)
	gateRepo := postgres.NewGateRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)
	processedRepo := postgres.NewProcessedEventRepository(base)

	m := metrics.New("ats")

	gateSvc := gateService.NewService(
		appRepo,
		gateRepo,
		outbox.NewWriter(outboxRepo),
		outboxRepo,
		appLogger,
		m,
		cfg.Web.BaseURL,
	)

	verifier := auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	authMW := middleware.NewAuthMiddleware(verifier)

	r := router.NewRouter(
		authMW,
		gateHandler.NewHandler(gateSvc),
		outboxHandler.NewHandler(outboxRepo, processedRepo, appLogger),
		healthHandler.NewHandler(db),
		router.Config{
			RateLimit:          rate.Limit(cfg.Server.RateLimit),
			RateBurst:          cfg.Server.RateBurst,
			OperatorActorTypes: []string{"recruiter", "system"},
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		appLogger.Info("starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error(err, "forced shutdown")
	}
}

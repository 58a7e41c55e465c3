package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hireloop/ats-api/internal/config"
	"github.com/hireloop/ats-api/internal/repository/postgres"
	"github.com/hireloop/ats-api/pkg/backoff"
	"github.com/hireloop/ats-api/pkg/logger"
	"github.com/hireloop/ats-api/pkg/messaging"
	"github.com/hireloop/ats-api/pkg/messaging/kafka"
	"github.com/hireloop/ats-api/pkg/messaging/redis"
	"github.com/hireloop/ats-api/pkg/metrics"
	"github.com/hireloop/ats-api/pkg/worker"
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

	broker, err := newBroker(cfg.Broker)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(postgres.NewBaseRepository(db))

	relay := worker.NewRelay(outboxRepo, broker, worker.RelayConfig{
		Topic:          cfg.Broker.Topic,
		BatchSize:      cfg.Outbox.BatchSize,
		PollInterval:   cfg.Outbox.PollInterval,
		MaxAttempts:    cfg.Outbox.MaxAttempts,
		PublishTimeout: cfg.Outbox.PublishTimeout,
		Publish: backoff.Policy{
			Initial:     cfg.Outbox.RetryInitialDelay,
			Max:         cfg.Outbox.PublishTimeout,
			Multiplier:  2,
			MaxAttempts: 3,
		},
		Schedule: backoff.Policy{
			Initial:    cfg.Outbox.RetryInitialDelay,
			Max:        cfg.Outbox.RetryMaxDelay,
			Multiplier: 2,
		},
		RetentionAge:    cfg.Outbox.RetentionAge,
		CleanupInterval: cfg.Outbox.CleanupInterval,
	}, appLogger, metrics.New("ats_relay"))

	serveOps(db, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay.Start(ctx)
}

func newBroker(cfg config.BrokerConfig) (messaging.Broker, error) {
	switch cfg.Kind {
	case "kafka":
		return kafka.NewBroker(kafka.Config{Brokers: cfg.Kafka.Brokers}, &log.Logger)
	default:
		return redis.NewBroker(redis.Config{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &log.Logger)
	}
}

// serveOps exposes liveness, readiness and metrics on a side port.
func serveOps(db interface{ Ping() error }, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.Error(err, "ops server failed")
			os.Exit(1)
		}
	}()
}

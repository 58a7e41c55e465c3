package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hireloop/ats-api/internal/config"
	"github.com/hireloop/ats-api/internal/consumer"
	"github.com/hireloop/ats-api/internal/email"
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

	base := postgres.NewBaseRepository(db)
	appRepo := postgres.NewApplicationRepository(base)
	processedRepo := postgres.NewProcessedEventRepository(base)
	notificationRepo := postgres.NewNotificationRepository(base)

	dispatcher := consumer.NewDispatcher(
		cfg.Consumer.Name,
		processedRepo,
		backoff.Policy{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2},
		cfg.Consumer.MaxAttempts,
		appLogger,
		metrics.New("ats_notifier"),
	)
	consumer.NewNotificationHandler(
		appRepo,
		notificationRepo,
		cfg.Consumer.ReviewerInbox,
		appLogger,
	).RegisterAll(dispatcher)

	var sender email.Sender
	if cfg.SMTP.Host != "" {
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, appLogger)
	} else {
		sender = &email.NoopSender{Logger: appLogger}
	}
	mailer := worker.NewMailer(notificationRepo, sender, worker.MailerConfig{
		BatchSize:   cfg.Consumer.MailerBatch,
		MaxAttempts: cfg.Consumer.MaxAttempts,
	}, appLogger)

	serveOps(db, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		mailer.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := broker.Subscribe(ctx, cfg.Broker.Topic, cfg.Consumer.Group, dispatcher.Handle); err != nil && ctx.Err() == nil {
			appLogger.Error(err, "subscription ended")
			stop()
		}
	}()
	wg.Wait()
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
		if err := http.ListenAndServe(":8082", mux); err != nil {
			appLogger.Error(err, "ops server failed")
			os.Exit(1)
		}
	}()
}

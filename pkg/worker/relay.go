// Package worker hosts the outbox relay: the background loop that turns
// committed outbox rows into bus messages, at least once, in per-aggregate
// order.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	"github.com/hireloop/ats-api/pkg/backoff"
	"github.com/hireloop/ats-api/pkg/event"
	"github.com/hireloop/ats-api/pkg/logger"
	"github.com/hireloop/ats-api/pkg/messaging"
	"github.com/hireloop/ats-api/pkg/metrics"
)

type RelayConfig struct {
	Topic          string
	BatchSize      int
	PollInterval   time.Duration
	MaxAttempts    int
	PublishTimeout time.Duration
	// Publish retries within one cycle; Schedule spaces retries across
	// cycles via next_attempt_at.
	Publish  backoff.Policy
	Schedule backoff.Policy

	RetentionAge    time.Duration
	CleanupInterval time.Duration
}

type Relay struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  RelayConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewRelay(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config RelayConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Relay {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}
	if config.Topic == "" {
		panic("Topic must be set")
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 10 * time.Second
	}

	return &Relay{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// Start polls until ctx is done. The interval carries jitter so multiple
// relay instances do not synchronize their claims.
func (r *Relay) Start(ctx context.Context) {
	r.logger.Info("starting outbox relay", "topic", r.config.Topic)

	if r.config.RetentionAge > 0 && r.config.CleanupInterval > 0 {
		go r.cleanupLoop(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down outbox relay")
			return
		case <-time.After(r.jitteredInterval()):
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error(err, "relay cycle failed")
			}
		}
	}
}

func (r *Relay) jitteredInterval() time.Duration {
	base := r.config.PollInterval
	return base + time.Duration(rand.Int63n(int64(base)/10+1))
}

// RunOnce claims one batch and publishes it. The claim, the publishes and
// the delivery marks share one transaction: SKIP LOCKED on the claim means a
// second relay instance simply sees none of these rows. A crash between
// publish and commit redelivers the batch, which is the at-least-once
// contract consumers already handle. Per-aggregate FIFO rests on the claim
// itself: only each aggregate's oldest pending row is claimable, so a
// follower stays invisible until its predecessor is delivered or exhausted.
func (r *Relay) RunOnce(ctx context.Context) error {
	timer := prometheus.NewTimer(r.metrics.OutboxRelayLatency)
	defer timer.ObserveDuration()

	return r.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		events, err := r.repo.ClaimPending(ctx, tx, r.config.BatchSize)
		if err != nil {
			r.metrics.DatabaseOperations.WithLabelValues("claim_pending", "error").Inc()
			return fmt.Errorf("failed to claim pending events: %w", err)
		}
		r.metrics.DatabaseOperations.WithLabelValues("claim_pending", "success").Inc()

		for _, evt := range events {
			if err := r.publish(ctx, evt); err != nil {
				r.metrics.OutboxEventsFailed.Inc()
				attempts := evt.AttemptCount + 1
				if attempts >= r.config.MaxAttempts {
					// Parked for manual replay; deliberately not blocking
					// the aggregate, a permanently unroutable event must
					// not wedge everything behind it.
					if markErr := r.repo.MarkExhausted(ctx, tx, evt.ID, err.Error()); markErr != nil {
						return markErr
					}
					r.metrics.OutboxEventsExhausted.Inc()
					r.logger.Error(err, "event delivery exhausted, manual replay required",
						"event_id", evt.EventID.String(),
						"event_type", evt.EventType,
						"attempts", attempts)
					continue
				}

				nextAttempt := time.Now().Add(r.config.Schedule.DelayFor(evt.AttemptCount))
				if markErr := r.repo.MarkFailed(ctx, tx, evt.ID, err.Error(), nextAttempt); markErr != nil {
					return markErr
				}
				r.logger.Warn("publish failed, scheduled retry",
					"event_id", evt.EventID.String(),
					"event_type", evt.EventType,
					"attempt", attempts,
					"next_attempt_at", nextAttempt)
				continue
			}

			if err := r.repo.MarkDelivered(ctx, tx, evt.ID); err != nil {
				return err
			}
			r.metrics.OutboxEventsDelivered.Inc()
			r.metrics.OutboxDeliveryLag.WithLabelValues(evt.EventType).
				Observe(time.Since(evt.CreatedAt).Seconds())
		}

		return nil
	})
}

func (r *Relay) publish(ctx context.Context, evt *model.OutboxEvent) error {
	env := &event.Envelope{
		ID:            evt.EventID,
		EventType:     evt.EventType,
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		Sequence:      evt.ID,
		SchemaVersion: evt.SchemaVersion,
		OccurredAt:    evt.CreatedAt,
		Payload:       evt.Payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg := messaging.Message{
		Key:     evt.AggregateID.String(),
		Headers: env.Headers(),
		Body:    body,
	}

	err = backoff.Retry(ctx, r.config.Publish, func() error {
		pubCtx, cancel := context.WithTimeout(ctx, r.config.PublishTimeout)
		defer cancel()
		return r.broker.Publish(pubCtx, r.config.Topic, msg)
	})
	if err != nil {
		r.metrics.BrokerPublishes.WithLabelValues("error").Inc()
		return err
	}
	r.metrics.BrokerPublishes.WithLabelValues("success").Inc()
	return nil
}

func (r *Relay) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-r.config.RetentionAge)
			count, err := r.repo.DeleteDeliveredBefore(ctx, cutoff)
			if err != nil {
				r.logger.Error(err, "outbox retention sweep failed")
				continue
			}
			if count > 0 {
				r.logger.Info("outbox retention sweep", "deleted", count)
			}
		}
	}
}

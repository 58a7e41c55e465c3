// Package consumer hosts the idempotent event dispatcher: the subscriber
// side of the pipeline. Every delivery is deduplicated against the
// processed-events table inside the same transaction as the handler's side
// effects, so redeliveries are harmless.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	"github.com/hireloop/ats-api/pkg/backoff"
	"github.com/hireloop/ats-api/pkg/event"
	"github.com/hireloop/ats-api/pkg/logger"
	"github.com/hireloop/ats-api/pkg/messaging"
	"github.com/hireloop/ats-api/pkg/metrics"
)

// HandlerFunc processes one decoded event inside the dedup transaction.
// Database writes must go through tx so they commit or roll back together
// with the idempotency record.
type HandlerFunc func(ctx context.Context, tx *sqlx.Tx, env *event.Envelope, payload interface{}) error

type Dispatcher struct {
	name        string
	handlers    map[string]HandlerFunc
	processed   repository.ProcessedEventRepository
	retry       backoff.Policy
	maxAttempts int
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewDispatcher(
	name string,
	processed repository.ProcessedEventRepository,
	retry backoff.Policy,
	maxAttempts int,
	log *logger.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	if name == "" {
		panic("consumer name must be set")
	}
	if maxAttempts <= 0 {
		panic("maxAttempts must be greater than 0")
	}
	return &Dispatcher{
		name:        name,
		handlers:    make(map[string]HandlerFunc),
		processed:   processed,
		retry:       retry,
		maxAttempts: maxAttempts,
		logger:      log,
		metrics:     m,
	}
}

// Register binds a handler to an event type. Registering the same type twice
// is a programming error.
func (d *Dispatcher) Register(eventType string, handler HandlerFunc) {
	if _, dup := d.handlers[eventType]; dup {
		panic(fmt.Sprintf("handler already registered for %s", eventType))
	}
	d.handlers[eventType] = handler
}

// Handle is the messaging.Handler for this consumer. A nil return
// acknowledges the message; anything non-nil makes the broker redeliver it.
// Unknown event types are acknowledged so one bad event cannot wedge the
// subscription; undecodable payloads and exhausted retries are dead-lettered
// before the ack so they stay replayable.
func (d *Dispatcher) Handle(ctx context.Context, msg messaging.Message) error {
	var env event.Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		d.logger.Error(err, "discarding undecodable message", "key", msg.Key)
		return nil
	}

	handler, ok := d.handlers[env.EventType]
	if !ok {
		d.logger.Debug("no handler registered, acking",
			"event_type", env.EventType, "event_id", env.ID.String())
		return nil
	}

	// A registered type that fails to decode (corrupt payload, newer schema)
	// will never succeed on redelivery; park the envelope so an operator can
	// replay it after a fix instead of losing it to an ack.
	payload, err := event.Decode(&env)
	if err != nil {
		return d.deadLetter(ctx, &env, err)
	}

	attempt := func() error {
		return d.processed.WithTx(ctx, func(tx *sqlx.Tx) error {
			fresh, err := d.processed.MarkProcessed(ctx, tx, d.name, env.ID)
			if err != nil {
				return err
			}
			if !fresh {
				d.metrics.ConsumerDuplicates.WithLabelValues(env.EventType).Inc()
				d.logger.Debug("duplicate delivery discarded",
					"event_id", env.ID.String(), "event_type", env.EventType)
				return nil
			}
			return handler(ctx, tx, &env, payload)
		})
	}

	if err := backoff.Retry(ctx, withAttempts(d.retry, d.maxAttempts), attempt); err != nil {
		return d.deadLetter(ctx, &env, err)
	}

	d.metrics.ConsumerProcessed.WithLabelValues(env.EventType).Inc()
	return nil
}

func (d *Dispatcher) deadLetter(ctx context.Context, env *event.Envelope, cause error) error {
	raw, err := json.Marshal(env)
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"id":%q,"event_type":%q}`, env.ID, env.EventType))
	}

	dl := &model.DeadLetter{
		Consumer:  d.name,
		EventID:   env.ID,
		EventType: env.EventType,
		Envelope:  raw,
		LastError: cause.Error(),
	}
	if err := d.processed.InsertDeadLetter(ctx, dl); err != nil {
		// Could not even park it; leave the message unacked for redelivery.
		d.logger.Error(err, "failed to dead-letter event, leaving unacked",
			"event_id", env.ID.String())
		return err
	}

	d.metrics.ConsumerDeadLetters.WithLabelValues(env.EventType).Inc()
	d.logger.Error(cause, "event dead-lettered after max attempts",
		"event_id", env.ID.String(),
		"event_type", env.EventType,
		"consumer", d.name)
	return nil
}

func withAttempts(p backoff.Policy, attempts int) backoff.Policy {
	p.MaxAttempts = uint64(attempts)
	return p
}

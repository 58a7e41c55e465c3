package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

// Append inserts an event row inside the caller's transaction. The tx
// requirement is the whole correctness argument for exactly-once recording,
// so a nil tx is a hard error, not a fallback to a fresh transaction.
func (r *outboxRepository) Append(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	if tx == nil {
		return apperrors.TransactionRequired("outbox append")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			event_id, aggregate_type, aggregate_id, event_type,
			payload, schema_version, status, attempt_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		RETURNING id
	`
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()

	return tx.QueryRowContext(ctx, query,
		event.EventID, event.AggregateType, event.AggregateID, event.EventType,
		event.Payload, event.SchemaVersion, event.Status, event.CreatedAt,
	).Scan(&event.ID)
}

// ClaimPending locks a batch of undelivered rows for this relay transaction.
// SKIP LOCKED keeps two relay instances from double-claiming. Only each
// aggregate's oldest pending row is eligible: a follower must not be claimed
// while any earlier event of its aggregate is still undelivered (parked for
// retry, or held by another relay instance), or it would overtake the head.
func (r *outboxRepository) ClaimPending(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error) {
	if tx == nil {
		return nil, apperrors.TransactionRequired("outbox claim")
	}

	query := `
		SELECT o.id, o.event_id, o.aggregate_type, o.aggregate_id, o.event_type,
		       o.payload, o.schema_version, o.status, o.attempt_count, o.last_error,
		       o.next_attempt_at, o.created_at, o.delivered_at
		FROM outbox_events o
		WHERE o.status = 'pending'
		AND (o.next_attempt_at IS NULL OR o.next_attempt_at <= NOW())
		AND NOT EXISTS (
			SELECT 1 FROM outbox_events p
			WHERE p.aggregate_id = o.aggregate_id
			AND p.id < o.id
			AND p.status = 'pending'
		)
		ORDER BY o.aggregate_id, o.id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`
	var events []*model.OutboxEvent
	if err := tx.SelectContext(ctx, &events, query, limit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim pending events: %w", err)
	}
	return events, nil
}

// MarkDelivered sets delivered_at exactly once, after a confirmed publish ack.
func (r *outboxRepository) MarkDelivered(ctx context.Context, tx *sqlx.Tx, id int64) error {
	if tx == nil {
		return apperrors.TransactionRequired("outbox mark delivered")
	}

	query := `
		UPDATE outbox_events
		SET status = 'delivered', delivered_at = NOW(), last_error = NULL
		WHERE id = $1 AND delivered_at IS NULL
	`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark event delivered: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, tx *sqlx.Tx, id int64, lastError string, nextAttemptAt time.Time) error {
	if tx == nil {
		return apperrors.TransactionRequired("outbox mark failed")
	}

	query := `
		UPDATE outbox_events
		SET attempt_count = attempt_count + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1 AND delivered_at IS NULL
	`
	if _, err := tx.ExecContext(ctx, query, id, lastError, nextAttemptAt); err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkExhausted(ctx context.Context, tx *sqlx.Tx, id int64, lastError string) error {
	if tx == nil {
		return apperrors.TransactionRequired("outbox mark exhausted")
	}

	query := `
		UPDATE outbox_events
		SET status = 'exhausted', attempt_count = attempt_count + 1,
		    last_error = $2, next_attempt_at = NULL
		WHERE id = $1 AND delivered_at IS NULL
	`
	if _, err := tx.ExecContext(ctx, query, id, lastError); err != nil {
		return fmt.Errorf("failed to mark event exhausted: %w", err)
	}
	return nil
}

func (r *outboxRepository) ListExhausted(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type,
		       payload, schema_version, status, attempt_count, last_error,
		       next_attempt_at, created_at, delivered_at
		FROM outbox_events
		WHERE status = 'exhausted'
		ORDER BY id ASC
		LIMIT $1
	`
	var events []*model.OutboxEvent
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list exhausted events: %w", err)
	}
	return events, nil
}

// Replay returns an exhausted event to the pending pool for another delivery
// round. The attempt counter restarts so it gets a full budget.
func (r *outboxRepository) Replay(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_events
		SET status = 'pending', attempt_count = 0, next_attempt_at = NULL
		WHERE id = $1 AND status = 'exhausted'
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to replay event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.NewNotFound("exhausted outbox event", nil)
	}
	return nil
}

// DeleteDeliveredBefore is the audit-retention sweep. Delivered rows are
// never removed synchronously with business writes.
func (r *outboxRepository) DeleteDeliveredBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'delivered' AND delivered_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete delivered events: %w", err)
	}
	return result.RowsAffected()
}

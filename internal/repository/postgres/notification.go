package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

// Create inserts a notification row in the caller's transaction. The unique
// (channel, event_id) index makes redelivered events a no-op here.
func (r *notificationRepository) Create(ctx context.Context, tx *sqlx.Tx, n *model.Notification) error {
	if tx == nil {
		return apperrors.TransactionRequired("notification create")
	}

	query := `
		INSERT INTO notifications (id, event_id, channel, recipient, subject, body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (channel, event_id) DO NOTHING
	`
	n.CreatedAt = time.Now()
	if n.Status == "" {
		n.Status = model.NotificationStatusPending
	}

	if _, err := tx.ExecContext(ctx, query,
		n.ID, n.EventID, n.Channel, n.Recipient, n.Subject, n.Body, n.Status, n.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListPending returns committed notifications awaiting delivery on a
// channel, oldest first. Rows parked for a future retry stay invisible
// until their next_attempt_at passes.
func (r *notificationRepository) ListPending(ctx context.Context, channel string, limit int) ([]*model.Notification, error) {
	query := `
		SELECT id, event_id, channel, recipient, subject, body, status,
		       attempt_count, last_error, next_attempt_at, created_at, sent_at
		FROM notifications
		WHERE channel = $1 AND status = 'pending'
		AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
		ORDER BY created_at
		LIMIT $2
	`
	var out []*model.Notification
	if err := r.db.SelectContext(ctx, &out, query, channel, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	return out, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET status = 'sent', sent_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a transient send failure: the row stays pending with
// the next attempt scheduled, same shape as a parked outbox event.
func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, nextAttemptAt time.Time) error {
	query := `
		UPDATE notifications
		SET attempt_count = attempt_count + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	if _, err := r.db.ExecContext(ctx, query, id, reason, nextAttemptAt); err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// MarkExhausted parks a notification after its attempt budget is spent.
func (r *notificationRepository) MarkExhausted(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE notifications
		SET status = 'failed', attempt_count = attempt_count + 1,
		    last_error = $2, next_attempt_at = NULL
		WHERE id = $1 AND status = 'pending'
	`
	if _, err := r.db.ExecContext(ctx, query, id, reason); err != nil {
		return fmt.Errorf("failed to mark notification exhausted: %w", err)
	}
	return nil
}

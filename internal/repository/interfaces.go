package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/model"
)

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

type ApplicationRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, app *model.Application) error
	Get(ctx context.Context, id uuid.UUID) (*model.Application, error)
	// GetForUpdate locks the application row with NOWAIT; a held lock maps
	// to ErrConcurrentModification so the losing caller can retry.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Application, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.ApplicationStatus) error
}

type GateRepository interface {
	GetState(ctx context.Context, applicationID uuid.UUID) (*model.ApplicationGateState, error)
	InsertTransition(ctx context.Context, tx *sqlx.Tx, t *model.GateTransition) error
	UpsertState(ctx context.Context, tx *sqlx.Tx, s *model.ApplicationGateState) error
	ListTransitions(ctx context.Context, applicationID uuid.UUID) ([]*model.GateTransition, error)
}

type OutboxRepository interface {
	TxRunner
	// Append requires an active transaction; it fails with
	// ErrTransactionRequired otherwise.
	Append(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
	// ClaimPending selects undelivered rows FOR UPDATE SKIP LOCKED, ordered
	// by (aggregate_id, id). Only each aggregate's oldest pending row is
	// eligible, so a follower can never be claimed ahead of an undelivered
	// predecessor, not even across relay cycles or instances.
	ClaimPending(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error)
	MarkDelivered(ctx context.Context, tx *sqlx.Tx, id int64) error
	MarkFailed(ctx context.Context, tx *sqlx.Tx, id int64, lastError string, nextAttemptAt time.Time) error
	MarkExhausted(ctx context.Context, tx *sqlx.Tx, id int64, lastError string) error
	ListExhausted(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	Replay(ctx context.Context, id int64) error
	DeleteDeliveredBefore(ctx context.Context, before time.Time) (int64, error)
}

type ProcessedEventRepository interface {
	TxRunner
	// MarkProcessed records the dedup key. It returns false when the event
	// was already processed by this consumer.
	MarkProcessed(ctx context.Context, tx *sqlx.Tx, consumer string, eventID uuid.UUID) (bool, error)
	InsertDeadLetter(ctx context.Context, dl *model.DeadLetter) error
	ListDeadLetters(ctx context.Context, consumer string, limit int) ([]*model.DeadLetter, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, n *model.Notification) error
	// ListPending skips rows parked for a future retry.
	ListPending(ctx context.Context, channel string, limit int) ([]*model.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	// MarkFailed keeps the row pending and schedules the next attempt.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, nextAttemptAt time.Time) error
	// MarkExhausted parks the row as failed once the attempt budget is spent.
	MarkExhausted(ctx context.Context, id uuid.UUID, reason string) error
}

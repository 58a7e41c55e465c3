package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
)

type processedEventRepository struct {
	BaseRepository
}

func NewProcessedEventRepository(base BaseRepository) repository.ProcessedEventRepository {
	return &processedEventRepository{base}
}

// MarkProcessed claims the (consumer, event_id) dedup key. A conflict means
// a redelivery of something already handled; the caller acks and discards.
func (r *processedEventRepository) MarkProcessed(ctx context.Context, tx *sqlx.Tx, consumer string, eventID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, apperrors.TransactionRequired("processed event insert")
	}

	query := `
		INSERT INTO processed_events (consumer, event_id, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (consumer, event_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, consumer, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to record processed event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *processedEventRepository) InsertDeadLetter(ctx context.Context, dl *model.DeadLetter) error {
	query := `
		INSERT INTO consumer_dead_letters (consumer, event_id, event_type, envelope, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := r.db.ExecContext(ctx, query,
		dl.Consumer, dl.EventID, dl.EventType, dl.Envelope, dl.LastError,
	); err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}

func (r *processedEventRepository) ListDeadLetters(ctx context.Context, consumer string, limit int) ([]*model.DeadLetter, error) {
	query := `
		SELECT id, consumer, event_id, event_type, envelope, last_error, created_at
		FROM consumer_dead_letters
		WHERE consumer = $1
		ORDER BY id ASC
		LIMIT $2
	`
	var letters []*model.DeadLetter
	if err := r.db.SelectContext(ctx, &letters, query, consumer, limit); err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return letters, nil
}

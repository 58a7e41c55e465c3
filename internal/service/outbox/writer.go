// Package outbox turns domain facts into outbox rows inside the caller's
// transaction. It is the only path by which the state machine becomes
// visible to the outside world.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
	"github.com/hireloop/ats-api/pkg/event"
)

type Writer struct {
	repo repository.OutboxRepository
}

func NewWriter(repo repository.OutboxRepository) *Writer {
	return &Writer{repo: repo}
}

// Append records an event in the same transaction as the business write that
// produced it. Callers without an active transaction get
// ErrTransactionRequired; there is no implicit fallback.
func (w *Writer) Append(ctx context.Context, tx *sqlx.Tx, aggregateType string, aggregateID uuid.UUID, eventType string, payload interface{}) (*model.OutboxEvent, error) {
	if tx == nil {
		return nil, apperrors.TransactionRequired("outbox append")
	}

	version, err := event.SchemaVersion(eventType)
	if err != nil {
		return nil, fmt.Errorf("refusing to append unregistered event: %w", err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	evt := &model.OutboxEvent{
		EventID:       uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		SchemaVersion: version,
	}
	if err := w.repo.Append(ctx, tx, evt); err != nil {
		return nil, err
	}
	return evt, nil
}

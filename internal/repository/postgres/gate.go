package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
)

type gateRepository struct {
	BaseRepository
}

func NewGateRepository(base BaseRepository) repository.GateRepository {
	return &gateRepository{base}
}

func (r *gateRepository) GetState(ctx context.Context, applicationID uuid.UUID) (*model.ApplicationGateState, error) {
	query := `
		SELECT application_id, current_gate, gate_status, entered_at, resolved_at, updated_at
		FROM application_gate_states
		WHERE application_id = $1
	`
	var state model.ApplicationGateState
	if err := r.db.GetContext(ctx, &state, query, applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get gate state: %w", err)
	}
	return &state, nil
}

func (r *gateRepository) InsertTransition(ctx context.Context, tx *sqlx.Tx, t *model.GateTransition) error {
	if tx == nil {
		return apperrors.TransactionRequired("gate transition insert")
	}

	query := `
		INSERT INTO gate_transitions (
			application_id, gate, from_status, to_status, actor, notes, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return tx.QueryRowContext(ctx, query,
		t.ApplicationID, t.Gate, t.FromStatus, t.ToStatus, t.Actor, t.Notes, t.OccurredAt,
	).Scan(&t.ID)
}

func (r *gateRepository) UpsertState(ctx context.Context, tx *sqlx.Tx, s *model.ApplicationGateState) error {
	if tx == nil {
		return apperrors.TransactionRequired("gate state upsert")
	}

	query := `
		INSERT INTO application_gate_states (
			application_id, current_gate, gate_status, entered_at, resolved_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (application_id) DO UPDATE SET
			current_gate = EXCLUDED.current_gate,
			gate_status = EXCLUDED.gate_status,
			entered_at = EXCLUDED.entered_at,
			resolved_at = EXCLUDED.resolved_at,
			updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query,
		s.ApplicationID, s.CurrentGate, s.GateStatus, s.EnteredAt, s.ResolvedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert gate state: %w", err)
	}
	return nil
}

func (r *gateRepository) ListTransitions(ctx context.Context, applicationID uuid.UUID) ([]*model.GateTransition, error) {
	query := `
		SELECT id, application_id, gate, from_status, to_status, actor, notes, occurred_at
		FROM gate_transitions
		WHERE application_id = $1
		ORDER BY id ASC
	`
	var transitions []*model.GateTransition
	if err := r.db.SelectContext(ctx, &transitions, query, applicationID); err != nil {
		return nil, fmt.Errorf("failed to list gate transitions: %w", err)
	}
	return transitions, nil
}

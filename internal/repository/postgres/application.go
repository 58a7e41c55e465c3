package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
)

// pgLockNotAvailable is raised by FOR UPDATE NOWAIT when another transaction
// holds the row lock.
const pgLockNotAvailable = "55P03"

type applicationRepository struct {
	BaseRepository
}

func NewApplicationRepository(base BaseRepository) repository.ApplicationRepository {
	return &applicationRepository{base}
}

func (r *applicationRepository) Create(ctx context.Context, tx *sqlx.Tx, app *model.Application) error {
	if tx == nil {
		return apperrors.TransactionRequired("application create")
	}

	query := `
		INSERT INTO applications (
			id, candidate_id, candidate_name, candidate_email,
			job_id, job_title, company_name, pipeline, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	app.CreatedAt = time.Now()
	app.UpdatedAt = app.CreatedAt
	app.Status = model.ApplicationStatusActive

	_, err := tx.ExecContext(ctx, query,
		app.ID, app.CandidateID, app.CandidateName, app.CandidateEmail,
		app.JobID, app.JobTitle, app.CompanyName, app.Pipeline, app.Status,
		app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

func (r *applicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	query := `
		SELECT id, candidate_id, candidate_name, candidate_email,
		       job_id, job_title, company_name, pipeline, status,
		       created_at, updated_at
		FROM applications
		WHERE id = $1
	`
	var app model.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("application", err)
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &app, nil
}

func (r *applicationRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Application, error) {
	if tx == nil {
		return nil, apperrors.TransactionRequired("application lock")
	}

	query := `
		SELECT id, candidate_id, candidate_name, candidate_email,
		       job_id, job_title, company_name, pipeline, status,
		       created_at, updated_at
		FROM applications
		WHERE id = $1
		FOR UPDATE NOWAIT
	`
	var app model.Application
	if err := tx.GetContext(ctx, &app, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("application", err)
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgLockNotAvailable {
			return nil, apperrors.ConcurrentModification(id.String(), err)
		}
		return nil, fmt.Errorf("failed to lock application: %w", err)
	}
	return &app, nil
}

func (r *applicationRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.ApplicationStatus) error {
	if tx == nil {
		return apperrors.TransactionRequired("application status update")
	}

	query := `UPDATE applications SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	return nil
}

package gate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/model"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
)

// fakeTxRunner hands the callback a placeholder transaction; the fakes below
// ignore it.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(&sqlx.Tx{})
}

type fakeApps struct {
	mu sync.Mutex
	// lockErr simulates another transaction holding the row lock.
	lockErr error
	apps    map[uuid.UUID]*model.Application
}

func newFakeApps() *fakeApps {
	return &fakeApps{apps: make(map[uuid.UUID]*model.Application)}
}

func (f *fakeApps) Create(_ context.Context, tx *sqlx.Tx, app *model.Application) error {
	if tx == nil {
		return apperrors.TransactionRequired("application create")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	app.Status = model.ApplicationStatusActive
	f.apps[app.ID] = app
	return nil
}

func (f *fakeApps) Get(_ context.Context, id uuid.UUID) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, apperrors.NewNotFound("application", nil)
	}
	return app, nil
}

func (f *fakeApps) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Application, error) {
	if tx == nil {
		return nil, apperrors.TransactionRequired("application lock")
	}
	f.mu.Lock()
	lockErr := f.lockErr
	f.mu.Unlock()
	if lockErr != nil {
		return nil, lockErr
	}
	return f.Get(ctx, id)
}

func (f *fakeApps) UpdateStatus(_ context.Context, tx *sqlx.Tx, id uuid.UUID, status model.ApplicationStatus) error {
	if tx == nil {
		return apperrors.TransactionRequired("application status update")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[id].Status = status
	return nil
}

type fakeGates struct {
	mu          sync.Mutex
	states      map[uuid.UUID]*model.ApplicationGateState
	transitions []*model.GateTransition
}

func newFakeGates() *fakeGates {
	return &fakeGates{states: make(map[uuid.UUID]*model.ApplicationGateState)}
}

func (f *fakeGates) GetState(_ context.Context, applicationID uuid.UUID) (*model.ApplicationGateState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[applicationID], nil
}

func (f *fakeGates) InsertTransition(_ context.Context, tx *sqlx.Tx, t *model.GateTransition) error {
	if tx == nil {
		return apperrors.TransactionRequired("gate transition insert")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = int64(len(f.transitions) + 1)
	f.transitions = append(f.transitions, t)
	return nil
}

func (f *fakeGates) UpsertState(_ context.Context, tx *sqlx.Tx, s *model.ApplicationGateState) error {
	if tx == nil {
		return apperrors.TransactionRequired("gate state upsert")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[s.ApplicationID] = s
	return nil
}

func (f *fakeGates) ListTransitions(_ context.Context, applicationID uuid.UUID) ([]*model.GateTransition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.GateTransition
	for _, t := range f.transitions {
		if t.ApplicationID == applicationID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeOutboxRepo struct {
	mu       sync.Mutex
	appended []*model.OutboxEvent
}

func (f *fakeOutboxRepo) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(&sqlx.Tx{})
}

func (f *fakeOutboxRepo) Append(_ context.Context, tx *sqlx.Tx, evt *model.OutboxEvent) error {
	if tx == nil {
		return apperrors.TransactionRequired("outbox append")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	evt.ID = int64(len(f.appended) + 1)
	evt.CreatedAt = time.Now()
	f.appended = append(f.appended, evt)
	return nil
}

func (f *fakeOutboxRepo) ClaimPending(context.Context, *sqlx.Tx, int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) MarkDelivered(context.Context, *sqlx.Tx, int64) error { return nil }

func (f *fakeOutboxRepo) MarkFailed(context.Context, *sqlx.Tx, int64, string, time.Time) error {
	return nil
}

func (f *fakeOutboxRepo) MarkExhausted(context.Context, *sqlx.Tx, int64, string) error { return nil }

func (f *fakeOutboxRepo) ListExhausted(context.Context, int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) Replay(context.Context, int64) error { return nil }

func (f *fakeOutboxRepo) DeleteDeliveredBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeOutboxRepo) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, len(f.appended))
	for i, evt := range f.appended {
		types[i] = evt.EventType
	}
	return types
}

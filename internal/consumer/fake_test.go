package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/model"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
)

type fakeProcessed struct {
	mu          sync.Mutex
	seen        map[string]bool
	deadLetters []*model.DeadLetter
	insertErr   error
}

func newFakeProcessed() *fakeProcessed {
	return &fakeProcessed{seen: make(map[string]bool)}
}

// WithTx mimics transactional rollback: dedup marks recorded during a
// failed callback are discarded, exactly as the database would.
func (f *fakeProcessed) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	f.mu.Lock()
	snapshot := make(map[string]bool, len(f.seen))
	for k, v := range f.seen {
		snapshot[k] = v
	}
	f.mu.Unlock()

	if err := fn(&sqlx.Tx{}); err != nil {
		f.mu.Lock()
		f.seen = snapshot
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeProcessed) MarkProcessed(_ context.Context, tx *sqlx.Tx, consumer string, eventID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, apperrors.TransactionRequired("mark processed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := consumer + "/" + eventID.String()
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeProcessed) InsertDeadLetter(_ context.Context, dl *model.DeadLetter) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dl.ID = int64(len(f.deadLetters) + 1)
	dl.CreatedAt = time.Now()
	f.deadLetters = append(f.deadLetters, dl)
	return nil
}

func (f *fakeProcessed) ListDeadLetters(_ context.Context, consumer string, _ int) ([]*model.DeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.DeadLetter
	for _, dl := range f.deadLetters {
		if dl.Consumer == consumer {
			out = append(out, dl)
		}
	}
	return out, nil
}

type fakeNotifications struct {
	mu      sync.Mutex
	created []*model.Notification
}

func (f *fakeNotifications) Create(_ context.Context, tx *sqlx.Tx, n *model.Notification) error {
	if tx == nil {
		return apperrors.TransactionRequired("notification create")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.created {
		if existing.Channel == n.Channel && existing.EventID == n.EventID {
			return nil
		}
	}
	n.CreatedAt = time.Now()
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotifications) ListPending(_ context.Context, channel string, _ int) ([]*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Notification
	for _, n := range f.created {
		if n.Channel == channel && n.Status == model.NotificationStatusPending {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) MarkSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.created {
		if n.ID == id {
			now := time.Now()
			n.Status = model.NotificationStatusSent
			n.SentAt = &now
		}
	}
	return nil
}

func (f *fakeNotifications) MarkFailed(_ context.Context, id uuid.UUID, reason string, nextAttemptAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.created {
		if n.ID == id {
			n.AttemptCount++
			n.LastError = &reason
			at := nextAttemptAt
			n.NextAttemptAt = &at
		}
	}
	return nil
}

func (f *fakeNotifications) MarkExhausted(_ context.Context, id uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.created {
		if n.ID == id {
			n.Status = model.NotificationStatusFailed
			n.AttemptCount++
			n.LastError = &reason
			n.NextAttemptAt = nil
		}
	}
	return nil
}

type fakeApps struct {
	mu   sync.Mutex
	apps map[uuid.UUID]*model.Application
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

func (f *fakeApps) GetForUpdate(ctx context.Context, _ *sqlx.Tx, id uuid.UUID) (*model.Application, error) {
	return f.Get(ctx, id)
}

func (f *fakeApps) UpdateStatus(_ context.Context, _ *sqlx.Tx, id uuid.UUID, status model.ApplicationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[id].Status = status
	return nil
}

package outbox

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/model"
)

// fakeOutboxRepo satisfies repository.OutboxRepository for tests that only
// exercise Append.
type fakeOutboxRepo struct{}

func (fakeOutboxRepo) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(&sqlx.Tx{})
}

func (fakeOutboxRepo) Append(context.Context, *sqlx.Tx, *model.OutboxEvent) error { return nil }

func (fakeOutboxRepo) ClaimPending(context.Context, *sqlx.Tx, int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (fakeOutboxRepo) MarkDelivered(context.Context, *sqlx.Tx, int64) error { return nil }

func (fakeOutboxRepo) MarkFailed(context.Context, *sqlx.Tx, int64, string, time.Time) error {
	return nil
}

func (fakeOutboxRepo) MarkExhausted(context.Context, *sqlx.Tx, int64, string) error { return nil }

func (fakeOutboxRepo) ListExhausted(context.Context, int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (fakeOutboxRepo) Replay(context.Context, int64) error { return nil }

func (fakeOutboxRepo) DeleteDeliveredBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

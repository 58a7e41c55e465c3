package outbox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/ats-api/internal/model"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
	"github.com/hireloop/ats-api/pkg/event"
)

type recordingOutboxRepo struct {
	fakeOutboxRepo
	appended []*model.OutboxEvent
}

func (r *recordingOutboxRepo) Append(_ context.Context, tx *sqlx.Tx, evt *model.OutboxEvent) error {
	if tx == nil {
		return apperrors.TransactionRequired("outbox append")
	}
	evt.ID = int64(len(r.appended) + 1)
	r.appended = append(r.appended, evt)
	return nil
}

func TestAppendRequiresTransaction(t *testing.T) {
	w := NewWriter(&recordingOutboxRepo{})

	_, err := w.Append(context.Background(), nil, event.AggregateApplication, uuid.New(),
		event.TypeGateEntered, &event.GateEnteredPayload{})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransactionRequired))
}

func TestAppendRejectsUnregisteredType(t *testing.T) {
	w := NewWriter(&recordingOutboxRepo{})

	_, err := w.Append(context.Background(), &sqlx.Tx{}, event.AggregateApplication, uuid.New(),
		"gate.unknown", struct{}{})

	require.Error(t, err)
}

func TestAppendBuildsRow(t *testing.T) {
	repo := &recordingOutboxRepo{}
	w := NewWriter(repo)

	aggID := uuid.New()
	evt, err := w.Append(context.Background(), &sqlx.Tx{}, event.AggregateApplication, aggID,
		event.TypeGateDenied, &event.GateDeniedPayload{Reason: "no"})
	require.NoError(t, err)

	assert.Equal(t, event.TypeGateDenied, evt.EventType)
	assert.Equal(t, aggID, evt.AggregateID)
	assert.Equal(t, 1, evt.SchemaVersion)
	assert.NotEqual(t, uuid.Nil, evt.EventID)
	assert.JSONEq(t, `{"application_id":"","gate":"","actor":"","candidate_name":"","job_title":"","company_name":"","reason":"no"}`,
		string(evt.Payload))
	require.Len(t, repo.appended, 1)
}

package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/ats-api/pkg/backoff"
	"github.com/hireloop/ats-api/pkg/messaging"
)

func testBroker(maxAttempts int) *Broker {
	log := zerolog.Nop()
	return &Broker{
		reconnect: backoff.Policy{
			Initial:     time.Millisecond,
			Max:         time.Millisecond,
			Multiplier:  2,
			MaxAttempts: uint64(maxAttempts),
		},
		logger: &log,
	}
}

func TestDeliverRetriesSameMessageUntilHandled(t *testing.T) {
	b := testBroker(0)
	msg := messaging.Message{Key: "app-1", Body: []byte(`{}`)}

	calls := 0
	handler := func(_ context.Context, got messaging.Message) error {
		calls++
		assert.Equal(t, msg.Key, got.Key)
		if calls < 3 {
			return errors.New("database unavailable")
		}
		return nil
	}

	require.NoError(t, b.deliver(context.Background(), "events", 7, msg, handler))
	assert.Equal(t, 3, calls)
}

func TestDeliverStopsOnContextCancel(t *testing.T) {
	b := testBroker(0)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	handler := func(context.Context, messaging.Message) error {
		calls++
		cancel()
		return errors.New("database unavailable")
	}

	err := b.deliver(ctx, "events", 0, messaging.Message{}, handler)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDeliverSurfacesErrorAfterAttemptBudget(t *testing.T) {
	b := testBroker(2)

	calls := 0
	handler := func(context.Context, messaging.Message) error {
		calls++
		return errors.New("database unavailable")
	}

	err := b.deliver(context.Background(), "events", 0, messaging.Message{}, handler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	assert.Equal(t, 2, calls)
}

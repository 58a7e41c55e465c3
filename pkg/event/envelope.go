// Package event defines the bus contract: the message envelope and the
// closed, versioned union of payload shapes keyed by event type.
package event

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Message header keys carried alongside the envelope body.
const (
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
	HeaderAggregateID   = "aggregate_id"
	HeaderSchemaVersion = "schema_version"
)

// Envelope is the wire form of one outbox event. Sequence is the outbox row
// id: monotonic within the originating service, so consumers can re-order
// per-aggregate if their transport does not preserve delivery order.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Sequence      int64           `json:"sequence"`
	SchemaVersion int             `json:"schema_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Headers returns the bus message headers for this envelope.
func (e *Envelope) Headers() map[string]string {
	return map[string]string{
		HeaderEventType:     e.EventType,
		HeaderAggregateType: e.AggregateType,
		HeaderAggregateID:   e.AggregateID.String(),
		HeaderSchemaVersion: strconv.Itoa(e.SchemaVersion),
	}
}

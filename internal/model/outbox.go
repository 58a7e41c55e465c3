package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusDelivered OutboxStatus = "delivered"
	// Exhausted rows exceeded max attempts and wait for manual replay; they
	// are skipped by the relay so they do not block later events forever.
	OutboxStatusExhausted OutboxStatus = "exhausted"
)

// OutboxEvent is one announced fact, inserted in the same transaction as the
// business write it describes. ID is a bigserial: monotonic within this
// service, which is what per-aggregate ordering is keyed on. EventID is the
// global identity consumers dedup on.
type OutboxEvent struct {
	ID            int64           `db:"id" json:"id"`
	EventID       uuid.UUID       `db:"event_id" json:"event_id"`
	AggregateType string          `db:"aggregate_type" json:"aggregate_type"`
	AggregateID   uuid.UUID       `db:"aggregate_id" json:"aggregate_id"`
	EventType     string          `db:"event_type" json:"event_type"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	SchemaVersion int             `db:"schema_version" json:"schema_version"`
	Status        OutboxStatus    `db:"status" json:"status"`
	AttemptCount  int             `db:"attempt_count" json:"attempt_count"`
	LastError     *string         `db:"last_error" json:"last_error,omitempty"`
	NextAttemptAt *time.Time      `db:"next_attempt_at" json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	DeliveredAt   *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
}

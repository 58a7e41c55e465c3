package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

const (
	NotificationChannelEmail = "email"
	NotificationChannelInApp = "in_app"
)

// Notification is one rendered message derived from a pipeline event.
// EventID links back to the outbox event that produced it; the unique
// (channel, event_id) pair is what makes in-app delivery exactly-once.
// Email rows carry the same retry bookkeeping as outbox rows: failed sends
// stay pending with a next_attempt_at until the attempt budget runs out.
type Notification struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	EventID       uuid.UUID          `db:"event_id" json:"event_id"`
	Channel       string             `db:"channel" json:"channel"`
	Recipient     string             `db:"recipient" json:"recipient"`
	Subject       string             `db:"subject" json:"subject"`
	Body          string             `db:"body" json:"body"`
	Status        NotificationStatus `db:"status" json:"status"`
	AttemptCount  int                `db:"attempt_count" json:"attempt_count"`
	LastError     *string            `db:"last_error" json:"last_error,omitempty"`
	NextAttemptAt *time.Time         `db:"next_attempt_at" json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	SentAt        *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
}

// DeadLetter is an event a consumer gave up on after max attempts.
type DeadLetter struct {
	ID        int64     `db:"id" json:"id"`
	Consumer  string    `db:"consumer" json:"consumer"`
	EventID   uuid.UUID `db:"event_id" json:"event_id"`
	EventType string    `db:"event_type" json:"event_type"`
	Envelope  []byte    `db:"envelope" json:"envelope"`
	LastError string    `db:"last_error" json:"last_error"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

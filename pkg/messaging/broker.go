// Package messaging abstracts the message bus. The pipeline never depends on
// a particular queue product; redis pub/sub and kafka implementations are
// selected by configuration.
package messaging

import (
	"context"
)

// Message is one bus message. Key is the partition/ordering key (the
// aggregate id), Headers carry the envelope metadata, Body is the envelope
// JSON.
type Message struct {
	Key     string            `json:"key"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

// Handler processes one delivered message. Returning an error leaves the
// message unacknowledged; redelivery is expected.
type Handler func(ctx context.Context, msg Message) error

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic, group string, handler Handler) error
	Close() error
}

package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/hireloop/ats-api/pkg/backoff"
	"github.com/hireloop/ats-api/pkg/messaging"
)

type Config struct {
	Brokers      []string
	BatchTimeout time.Duration
	RequiredAcks int
}

// Broker is a kafka implementation of messaging.Broker. Messages are keyed
// by aggregate id, so per-aggregate ordering holds within a partition, and
// consumer groups give each subscriber its own offset cursor.
type Broker struct {
	writer    *kafka.Writer
	brokers   []string
	reconnect backoff.Policy
	logger    *zerolog.Logger
}

func NewBroker(config Config, logger *zerolog.Logger) (*Broker, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker address is required")
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = 50 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: config.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
	}

	return &Broker{
		writer:  writer,
		brokers: config.Brokers,
		reconnect: backoff.Policy{
			Initial:    time.Second,
			Max:        30 * time.Second,
			Multiplier: 2,
		},
		logger: logger,
	}, nil
}

func (b *Broker) Publish(ctx context.Context, topic string, msg messaging.Message) error {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return b.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.Key),
		Value:   msg.Body,
		Headers: headers,
	})
}

// Subscribe consumes the topic as part of a consumer group, committing
// offsets only after the handler returns nil. A failed handler keeps the
// loop on the same message: committing any later offset would implicitly
// commit the failed one and lose it.
func (b *Broker) Subscribe(ctx context.Context, topic, group string, handler messaging.Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	bo := b.reconnect.New(ctx)
	for {
		raw, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return ctx.Err()
			}
			delay := bo.NextBackOff()
			if delay < 0 {
				return err
			}
			b.logger.Warn().Err(err).Str("topic", topic).Dur("retry_in", delay).
				Msg("fetch failed, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		bo.Reset()

		msg := messaging.Message{
			Key:     string(raw.Key),
			Headers: make(map[string]string, len(raw.Headers)),
			Body:    raw.Value,
		}
		for _, h := range raw.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}

		if err := b.deliver(ctx, topic, raw.Offset, msg, handler); err != nil {
			return err
		}

		if err := reader.CommitMessages(ctx, raw); err != nil {
			b.logger.Error().Err(err).Str("topic", topic).Msg("failed to commit offset")
		}
	}
}

// deliver retries the handler on the same message until it returns nil.
// Dedup and dead-lettering live in the handler, so an error reaching this
// loop is infrastructural (database down, broker unreachable) and the right
// response is to wait, not to move past the message.
func (b *Broker) deliver(ctx context.Context, topic string, offset int64, msg messaging.Message, handler messaging.Handler) error {
	bo := b.reconnect.New(ctx)
	for {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		delay := bo.NextBackOff()
		if delay < 0 {
			return err
		}
		b.logger.Error().Err(err).Str("topic", topic).Int64("offset", offset).
			Dur("retry_in", delay).Msg("handler failed, retrying same message")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (b *Broker) Close() error {
	return b.writer.Close()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hireloop/ats-api/pkg/backoff"
	"github.com/hireloop/ats-api/pkg/circuitbreaker"
	"github.com/hireloop/ats-api/pkg/messaging"
)

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

// Broker is a redis pub/sub implementation of messaging.Broker. Redis
// pub/sub has no redelivery, so consumers relying on it must do their own
// retry bookkeeping; the dispatcher does.
type Broker struct {
	client    *redis.Client
	cb        *circuitbreaker.CircuitBreaker
	reconnect backoff.Policy
	logger    *zerolog.Logger
}

func NewBroker(config Config, logger *zerolog.Logger) (*Broker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Broker{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-broker",
			MaxFailures: 5,
			Timeout:     10 * time.Second,
		}),
		reconnect: backoff.Policy{
			Initial:    time.Second,
			Max:        30 * time.Second,
			Multiplier: 2,
		},
		logger: logger,
	}, nil
}

func (b *Broker) Publish(ctx context.Context, topic string, msg messaging.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.cb.Execute(func() error {
		return b.client.Publish(ctx, topic, payload).Err()
	})
}

// Subscribe blocks until ctx is done, reconnecting with backoff when the
// subscription drops. Group is ignored; redis pub/sub fans out to every
// subscriber.
func (b *Broker) Subscribe(ctx context.Context, topic, _ string, handler messaging.Handler) error {
	bo := b.reconnect.New(ctx)
	for {
		if err := b.consume(ctx, topic, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := bo.NextBackOff()
			if delay < 0 {
				return err
			}
			b.logger.Warn().Err(err).Str("topic", topic).Dur("retry_in", delay).
				Msg("subscription dropped, reconnecting")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		return nil
	}
}

func (b *Broker) consume(ctx context.Context, topic string, handler messaging.Handler) error {
	pubsub := b.client.Subscribe(ctx, topic)
	defer pubsub.Close()

	for {
		raw, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var msg messaging.Message
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			b.logger.Error().Err(err).Str("topic", topic).Msg("dropping undecodable message")
			continue
		}

		if err := handler(ctx, msg); err != nil {
			b.logger.Error().Err(err).Str("topic", topic).Msg("handler failed")
		}
	}
}

func (b *Broker) Close() error {
	return b.client.Close()
}

// Package backoff is the single retry primitive shared by the outbox relay,
// the bus clients and the event consumers. Every retry loop in the codebase
// goes through a Policy rather than hand-rolling its own delays.
package backoff

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes an exponential backoff with a cap and jitter.
type Policy struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts uint64
}

// DefaultPolicy matches the relay's publish retry defaults.
func DefaultPolicy() Policy {
	return Policy{
		Initial:     500 * time.Millisecond,
		Max:         30 * time.Second,
		Multiplier:  2.0,
		MaxAttempts: 3,
	}
}

func (p Policy) normalized() Policy {
	if p.Initial <= 0 {
		p.Initial = 500 * time.Millisecond
	}
	if p.Max <= 0 {
		p.Max = 30 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	return p
}

// New builds a backoff.BackOff for one retry sequence.
func (p Policy) New(ctx context.Context) backoff.BackOff {
	p = p.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.MaxInterval = p.Max
	b.Multiplier = p.Multiplier
	b.MaxElapsedTime = 0

	var bo backoff.BackOff = b
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, p.MaxAttempts-1)
	}
	return backoff.WithContext(bo, ctx)
}

// Retry runs fn until it succeeds, the policy is exhausted or ctx is done.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	return backoff.Retry(fn, p.New(ctx))
}

// RetryNotify is Retry with a callback per failed attempt.
func RetryNotify(ctx context.Context, p Policy, fn func() error, notify func(error, time.Duration)) error {
	return backoff.RetryNotify(fn, p.New(ctx), notify)
}

// DelayFor returns the delay to schedule before retry number attempt
// (zero-based), with up to 20% random jitter. Used to compute next_attempt_at
// for outbox rows parked in the database between relay cycles.
func (p Policy) DelayFor(attempt int) time.Duration {
	p = p.normalized()
	d := p.Initial
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.Max {
			d = p.Max
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(d)/5 + 1))
	d += jitter
	if d > p.Max {
		d = p.Max
	}
	return d
}

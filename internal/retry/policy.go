// Package retry applies one backoff policy at every provider-call boundary.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

// Policy bounds retries of a single external call.
type Policy struct {
	// MaxAttempts includes the first call. Values below 1 mean 1.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the backoff randomization factor in [0,1].
	Jitter float64
	// Timeout bounds each attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Defaults to domain.IsTransient.
	Retryable func(error) bool
	Logger    *zap.Logger
}

// DefaultPolicy returns the policy used when configuration is absent.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      0.5,
		Timeout:     30 * time.Second,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or ctx ends. The last error is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = domain.IsTransient
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := p.attempt(ctx, op)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying provider call",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(operation, backoff.WithContext(p.backOff(attempts), ctx), notify)
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (p Policy) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	err := op(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		if !domain.IsTransient(err) {
			err = domain.NewTransientProviderError(err)
		}
	}
	return err
}

func (p Policy) backOff(attempts int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		b.InitialInterval = p.BaseDelay
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(attempts-1))
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

// uncappedBackoff stands in for "no maximum" when MaxBackoff is unset.
const uncappedBackoff = 24 * time.Hour

type Policy struct {
	// MaxRetries is the number of extra attempts after the first call.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// CallTimeout bounds each attempt; zero leaves the parent deadline alone.
	CallTimeout time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries everything
	// that is not marked permanent.
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2,
		CallTimeout:    30 * time.Second,
	}
}

// permanent is implemented by upstream errors that know they will not succeed on retry.
type permanent interface {
	Retryable() bool
}

func defaultRetryable(err error) bool {
	var p permanent
	if errors.As(err, &p) {
		return p.Retryable()
	}
	return true
}

// Do calls fn until it succeeds, the policy gives up, or ctx ends. Backoff sleeps honour ctx.
func Do(ctx context.Context, p Policy, log *logger.Logger, op string, fn func(ctx context.Context) error) error {
	if log == nil {
		log = logger.Nop()
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = defaultRetryable
	}
	tries := p.MaxRetries + 1
	if tries < 1 {
		tries = 1
	}

	var attempts int
	var lastErr, stopErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		attempts++
		err := call(ctx, p.CallTimeout, fn)
		if err == nil {
			return struct{}{}, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			stopErr = err
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(exponential(p)),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			log.Warn("retrying after failure", "op", op, "attempt", attempts, "delay", delay, "error", err)
		}),
	)
	switch {
	case err == nil:
		return nil
	case stopErr != nil:
		return stopErr
	case ctx.Err() != nil && lastErr != nil:
		return fmt.Errorf("%s: %w (last error: %v)", op, ctx.Err(), lastErr)
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", op, attempts, lastErr)
}

// exponential builds a jitter-free backoff so delays follow the policy exactly.
func exponential(p Policy) *backoff.ExponentialBackOff {
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	maxDelay := p.MaxBackoff
	if maxDelay <= 0 {
		maxDelay = uncappedBackoff
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialBackoff,
		RandomizationFactor: 0,
		Multiplier:          mult,
		MaxInterval:         maxDelay,
	}
}

func call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(cctx)
}

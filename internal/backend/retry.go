package backend

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy controls the retry wrapper.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// DefaultPolicy retries transient failures up to 3 attempts with a doubling
// 1s base delay and up to 1s of random jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxJitter:   time.Second,
	}
}

// retryBackend decorates another Backend with bounded retries. Only transient
// failures (5xx-equivalents, timeouts) are retried; everything else returns
// immediately.
type retryBackend struct {
	inner  Backend
	policy Policy
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// WithRetry wraps b with the given retry policy.
func WithRetry(b Backend, policy Policy, logger *zap.Logger) Backend {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &retryBackend{
		inner:  b,
		policy: policy,
		logger: logger,
		sleep:  sleepCtx,
	}
}

func (r *retryBackend) Complete(ctx context.Context, parts []Part, opts Options) (*Completion, error) {
	var lastErr error
	delay := r.policy.BaseDelay
	attempts := 0

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		attempts = attempt
		resp, err := r.inner.Complete(ctx, parts, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !Transient(err) || attempt == r.policy.MaxAttempts {
			break
		}

		wait := delay
		if r.policy.MaxJitter > 0 {
			wait += time.Duration(rand.Int63n(int64(r.policy.MaxJitter)))
		}
		r.logger.Warn("backend call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
		delay *= 2
	}

	return nil, fmt.Errorf("after %d attempt(s): %w", attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

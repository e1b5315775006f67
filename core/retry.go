package core

import (
	"context"
	"time"
)

// RetryPolicy bounds retries of transient provider failures with exponential
// backoff. It applies at the client boundary only: the orchestrator retries
// whole calls, adapters never retry internally.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int
	// BaseDelay is the wait before the first retry; it doubles per retry.
	BaseDelay time.Duration
	// MaxDelay caps the doubling. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the standard two-attempt policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

// Do runs op until it succeeds, fails permanently, or the policy is
// exhausted. Only errors for which IsTransient holds are retried; the last
// error is returned unchanged so callers keep the typed provider error.
// Context cancellation during backoff wins over further attempts.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil || attempt >= attempts || !IsTransient(err) {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Retry bounds repeated invocations of the capability for a single task.
// Only transient failures are retried; the delay doubles after every
// attempt.
type Retry struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	CallTimeout time.Duration // per-call deadline, 0 = none
	Logger      *slog.Logger
}

// DefaultRetry matches the fixed attempt cap used by the pipeline.
func DefaultRetry() Retry {
	return Retry{MaxAttempts: 4, BaseDelay: 2 * time.Second, CallTimeout: 2 * time.Minute}
}

// Invoke calls a.Invoke under the retry policy. A permanent failure is
// returned immediately; a transient failure is retried until the attempt
// cap is exhausted, then returned wrapped.
func (r Retry) Invoke(ctx context.Context, a Analyzer, taskID, contextText string) (string, error) {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	delay := r.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx := ctx
		cancel := func() {}
		if r.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.CallTimeout)
		}
		out, err := a.Invoke(callCtx, taskID, contextText)
		cancel()
		if err == nil {
			return out, nil
		}
		if !IsTransient(err) {
			return "", err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		logger.Warn("transient analysis failure, retrying",
			"task", taskID, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", fmt.Errorf("analysis: task %s: retry budget exhausted after %d attempts: %w", taskID, attempts, lastErr)
}

package engine

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/stratus-iac/stratus/internal/logging"
)

// DefaultTimeout bounds a single resource operation unless the resource
// carries its own timeout.
const DefaultTimeout = 10 * time.Minute

// RetryPolicy controls retry behavior for transient provider errors.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryWithBackoff runs op, retrying with exponential backoff and jitter as
// long as retryable reports the error transient. The last error is returned
// when attempts are exhausted.
func RetryWithBackoff(ctx context.Context, policy RetryPolicy, op func() error, retryable func(error) bool) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := calculateBackoff(policy, attempt)
		logging.Warn("transient error, retrying", "attempt", attempt, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func calculateBackoff(policy RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= policy.Multiplier
	}
	if max := float64(policy.MaxDelay); delay > max {
		delay = max
	}
	// full jitter, at least a quarter of the computed delay
	jittered := delay/4 + rand.Float64()*delay*3/4
	return time.Duration(jittered)
}

// IsTransientError reports whether an error looks like a retryable
// infrastructure hiccup rather than a configuration problem.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"throttl",
		"rate exceeded",
		"too many requests",
		"timeout",
		"timed out",
		"connection reset",
		"connection refused",
		"temporarily unavailable",
		"service unavailable",
		"internal server error",
		"requestlimitexceeded",
		"dependencyviolation",
		"eventual consistency",
		"invalidgroup.notfound",
		"invalidrole.notfound",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

package transport

import (
	"context"
	"net/http"
	"time"
)

// RetryPolicy decides whether and when a failed vendor call is retried.
// One policy value is shared by every Transport-calling code path so
// backoff behavior is not duplicated per call site.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy retries rate-limit and transient server failures
// up to three attempts with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2,
	}
}

// RetryableStatus reports whether an HTTP status is worth retrying:
// vendor rate limiting and transient server errors. Auth failures and
// permanent rejections are not.
func (p RetryPolicy) RetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Delay computes the wait before the given retry attempt (1-based).
// A vendor Retry-After hint overrides the computed backoff.
func (p RetryPolicy) Delay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > p.MaxDelay {
			return p.MaxDelay
		}
		return retryAfter
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

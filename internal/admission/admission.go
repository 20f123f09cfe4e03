package admission

import (
	"context"
	"time"
)

// Limits are the sending caps for one rate-limit key.
type Limits struct {
	PerMinute int `json:"per_minute"`
	PerDay    int `json:"per_day"`
}

// Decision is the controller's answer to a reservation request. It
// always returns immediately; a rejection carries enough usage detail
// for the caller to decide when to retry.
type Decision struct {
	Allowed         bool   `json:"allowed"`
	Reason          string `json:"reason,omitempty"`
	MinuteUsed      int    `json:"minute_used"`
	MinuteRemaining int    `json:"minute_remaining"`
	DayUsed         int    `json:"day_used"`
	DayRemaining    int    `json:"day_remaining"`
}

// Rejection reasons surfaced in Decision.Reason.
const (
	ReasonDailyLimit = "daily limit reached"
	ReasonRateLimit  = "rate limit exceeded"
)

// Controller admits or rejects a requested send volume against a
// sliding one-minute window and a calendar-day counter. The check and
// the reservation are atomic with respect to concurrent callers: two
// dispatches must never both observe the same free capacity.
type Controller interface {
	// CheckAndReserve atomically checks capacity for key and, if both
	// limits hold, reserves n sends. State is only mutated on an
	// admitted request.
	CheckAndReserve(ctx context.Context, key string, n int, limits Limits) (Decision, error)

	// Usage reports current consumption for key without reserving.
	Usage(ctx context.Context, key string, limits Limits) (Decision, error)
}

// Clock abstracts wall-clock time so window and daily-reset behavior
// is testable.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock with the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// MockClock implements Clock for tests.
type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time { return m.CurrentTime }

func (m *MockClock) Advance(d time.Duration) {
	m.CurrentTime = m.CurrentTime.Add(d)
}

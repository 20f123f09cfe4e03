package admission

import (
	"context"
	"sync"
	"time"
)

const windowSize = time.Minute

type sample struct {
	at    time.Time
	count int
}

type keyState struct {
	window   []sample
	dayCount int
	dayDate  string // YYYY-MM-DD of the counter's calendar day
}

// MemoryController is the in-process Controller. Correct for a single
// instance only; run the Redis controller when the dispatcher scales
// out, or the caps are silently multiplied by the instance count.
type MemoryController struct {
	mu    sync.Mutex
	keys  map[string]*keyState
	clock Clock
}

// NewMemoryController creates an in-memory admission controller.
func NewMemoryController() *MemoryController {
	return &MemoryController{
		keys:  make(map[string]*keyState),
		clock: RealClock{},
	}
}

// SetClock injects a clock for tests.
func (c *MemoryController) SetClock(clock Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
}

// CheckAndReserve implements Controller. The whole check-then-reserve
// sequence runs under one lock so concurrent callers serialize.
func (c *MemoryController) CheckAndReserve(_ context.Context, key string, n int, limits Limits) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	state := c.state(key)

	c.rollDay(state, now)
	c.prune(state, now)

	decision := c.usageLocked(state, limits)

	if limits.PerDay > 0 && state.dayCount+n > limits.PerDay {
		decision.Reason = ReasonDailyLimit
		return decision, nil
	}

	minuteUsed := windowSum(state.window)
	if limits.PerMinute > 0 && minuteUsed+n > limits.PerMinute {
		decision.Reason = ReasonRateLimit
		return decision, nil
	}

	state.window = append(state.window, sample{at: now, count: n})
	state.dayCount += n

	decision = c.usageLocked(state, limits)
	decision.Allowed = true
	return decision, nil
}

// Usage implements Controller.
func (c *MemoryController) Usage(_ context.Context, key string, limits Limits) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	state := c.state(key)
	c.rollDay(state, now)
	c.prune(state, now)

	return c.usageLocked(state, limits), nil
}

func (c *MemoryController) state(key string) *keyState {
	state, ok := c.keys[key]
	if !ok {
		state = &keyState{}
		c.keys[key] = state
	}
	return state
}

// rollDay lazily zeroes the daily counter when the calendar date has
// changed since the last reservation. No background timer needed.
func (c *MemoryController) rollDay(state *keyState, now time.Time) {
	date := now.Format("2006-01-02")
	if state.dayDate != date {
		state.dayDate = date
		state.dayCount = 0
	}
}

// prune drops window samples older than the trailing minute.
func (c *MemoryController) prune(state *keyState, now time.Time) {
	cutoff := now.Add(-windowSize)
	kept := state.window[:0]
	for _, s := range state.window {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	state.window = kept
}

func (c *MemoryController) usageLocked(state *keyState, limits Limits) Decision {
	minuteUsed := windowSum(state.window)
	return Decision{
		MinuteUsed:      minuteUsed,
		MinuteRemaining: remaining(limits.PerMinute, minuteUsed),
		DayUsed:         state.dayCount,
		DayRemaining:    remaining(limits.PerDay, state.dayCount),
	}
}

func windowSum(window []sample) int {
	total := 0
	for _, s := range window {
		total += s.count
	}
	return total
}

func remaining(limit, used int) int {
	if limit <= 0 {
		return 0
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

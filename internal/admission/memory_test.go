package admission_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextiertech/outreach-messaging/internal/admission"
)

const testKey = "15555550100"

func newMemoryController(t *testing.T) (*admission.MemoryController, *admission.MockClock) {
	t.Helper()
	ctrl := admission.NewMemoryController()
	clock := &admission.MockClock{CurrentTime: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	ctrl.SetClock(clock)
	return ctrl, clock
}

func TestMemoryController_AdmitsWithinCaps(t *testing.T) {
	ctrl, _ := newMemoryController(t)
	limits := admission.Limits{PerMinute: 75, PerDay: 2000}

	decision, err := ctrl.CheckAndReserve(context.Background(), testKey, 50, limits)
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.Equal(t, 50, decision.MinuteUsed)
	assert.Equal(t, 25, decision.MinuteRemaining)
	assert.Equal(t, 50, decision.DayUsed)
	assert.Equal(t, 1950, decision.DayRemaining)
}

func TestMemoryController_RejectsOverMinuteCap(t *testing.T) {
	ctrl, _ := newMemoryController(t)
	limits := admission.Limits{PerMinute: 75, PerDay: 2000}
	ctx := context.Background()

	_, err := ctrl.CheckAndReserve(ctx, testKey, 70, limits)
	require.NoError(t, err)

	decision, err := ctrl.CheckAndReserve(ctx, testKey, 10, limits)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, admission.ReasonRateLimit, decision.Reason)

	// Rejection must not consume capacity: 5 more still fit.
	decision, err = ctrl.CheckAndReserve(ctx, testKey, 5, limits)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 75, decision.MinuteUsed)
}

func TestMemoryController_WindowSlides(t *testing.T) {
	ctrl, clock := newMemoryController(t)
	limits := admission.Limits{PerMinute: 75, PerDay: 2000}
	ctx := context.Background()

	decision, err := ctrl.CheckAndReserve(ctx, testKey, 75, limits)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = ctrl.CheckAndReserve(ctx, testKey, 1, limits)
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	clock.Advance(61 * time.Second)

	decision, err = ctrl.CheckAndReserve(ctx, testKey, 75, limits)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 150, decision.DayUsed)
}

func TestMemoryController_RejectsOverDailyCap(t *testing.T) {
	ctrl, _ := newMemoryController(t)
	limits := admission.Limits{PerMinute: 75, PerDay: 2000}

	decision, err := ctrl.CheckAndReserve(context.Background(), testKey, 3000, limits)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, admission.ReasonDailyLimit, decision.Reason)
	assert.Equal(t, 0, decision.DayUsed)
}

func TestMemoryController_DailyCapAccumulates(t *testing.T) {
	ctrl, clock := newMemoryController(t)
	limits := admission.Limits{PerMinute: 1000, PerDay: 2000}
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		decision, err := ctrl.CheckAndReserve(ctx, testKey, 500, limits)
		require.NoError(t, err)
		require.True(t, decision.Allowed, "reservation %d", i)
		clock.Advance(2 * time.Minute)
	}

	decision, err := ctrl.CheckAndReserve(ctx, testKey, 1, limits)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, admission.ReasonDailyLimit, decision.Reason)
	assert.Equal(t, 2000, decision.DayUsed)
}

func TestMemoryController_DailyCounterResetsOnNewDate(t *testing.T) {
	ctrl, clock := newMemoryController(t)
	limits := admission.Limits{PerMinute: 5000, PerDay: 2000}
	ctx := context.Background()

	decision, err := ctrl.CheckAndReserve(ctx, testKey, 2000, limits)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	// Next calendar day: the first check sees a zeroed counter.
	clock.Advance(24 * time.Hour)

	usage, err := ctrl.Usage(ctx, testKey, limits)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.DayUsed)

	decision, err = ctrl.CheckAndReserve(ctx, testKey, 2000, limits)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestMemoryController_KeysAreIndependent(t *testing.T) {
	ctrl, _ := newMemoryController(t)
	limits := admission.Limits{PerMinute: 10, PerDay: 100}
	ctx := context.Background()

	decision, err := ctrl.CheckAndReserve(ctx, "15555550100", 10, limits)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = ctrl.CheckAndReserve(ctx, "15555550101", 10, limits)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestMemoryController_ZeroLimitsAdmitEverything(t *testing.T) {
	ctrl, _ := newMemoryController(t)

	decision, err := ctrl.CheckAndReserve(context.Background(), testKey, 100000, admission.Limits{})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

// The admitted total within any window must never exceed the cap, no
// matter how the reservations interleave.
func TestMemoryController_ConcurrentReservations(t *testing.T) {
	ctrl, _ := newMemoryController(t)
	limits := admission.Limits{PerMinute: 50, PerDay: 1000}
	ctx := context.Background()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := ctrl.CheckAndReserve(ctx, testKey, 1, limits)
			if err == nil && decision.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), admitted.Load())

	usage, err := ctrl.Usage(ctx, testKey, limits)
	require.NoError(t, err)
	assert.Equal(t, 50, usage.MinuteUsed)
}

package admission

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	minutePrefix = "admission:minute:"
	dayPrefix    = "admission:day:"

	// Daily counter keys carry the date in the key name, so a stale
	// key from yesterday is simply never read again. TTL is cleanup.
	dayKeyTTL = 48 * time.Hour
)

// RedisController is the shared-store Controller for multi-instance
// deployments. The sliding window lives in a sorted set (score =
// reservation time, member = "uuid:count"); the daily counter is a
// plain integer key scoped to the calendar date.
type RedisController struct {
	client *redis.Client
	clock  Clock
	logger *zap.Logger
}

// NewRedisController creates a Redis-backed admission controller.
func NewRedisController(client *redis.Client, logger *zap.Logger) *RedisController {
	return &RedisController{
		client: client,
		clock:  RealClock{},
		logger: logger,
	}
}

// SetClock injects a clock for tests.
func (c *RedisController) SetClock(clock Clock) {
	c.clock = clock
}

// CheckAndReserve implements Controller. Prune, read, and reserve run
// as separate commands, so two instances racing for the last slots can
// in rare cases both reserve; the window is still bounded within one
// requestedCount of the cap, which beats the unbounded drift of
// per-instance counters.
func (c *RedisController) CheckAndReserve(ctx context.Context, key string, n int, limits Limits) (Decision, error) {
	now := c.clock.Now()

	minuteUsed, dayUsed, err := c.usage(ctx, key, now)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{
		MinuteUsed:      minuteUsed,
		MinuteRemaining: remaining(limits.PerMinute, minuteUsed),
		DayUsed:         dayUsed,
		DayRemaining:    remaining(limits.PerDay, dayUsed),
	}

	if limits.PerDay > 0 && dayUsed+n > limits.PerDay {
		decision.Reason = ReasonDailyLimit
		return decision, nil
	}
	if limits.PerMinute > 0 && minuteUsed+n > limits.PerMinute {
		decision.Reason = ReasonRateLimit
		return decision, nil
	}

	member := fmt.Sprintf("%s:%d", uuid.NewString(), n)
	dayKey := c.dayKey(key, now)

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, minutePrefix+key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	})
	pipe.Expire(ctx, minutePrefix+key, windowSize+time.Minute)
	pipe.IncrBy(ctx, dayKey, int64(n))
	pipe.Expire(ctx, dayKey, dayKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Error("admission reserve failed",
			zap.String("key", key),
			zap.Int("requested", n),
			zap.Error(err))
		return Decision{}, fmt.Errorf("admission reserve failed: %w", err)
	}

	decision.Allowed = true
	decision.MinuteUsed += n
	decision.MinuteRemaining = remaining(limits.PerMinute, decision.MinuteUsed)
	decision.DayUsed += n
	decision.DayRemaining = remaining(limits.PerDay, decision.DayUsed)
	return decision, nil
}

// Usage implements Controller.
func (c *RedisController) Usage(ctx context.Context, key string, limits Limits) (Decision, error) {
	minuteUsed, dayUsed, err := c.usage(ctx, key, c.clock.Now())
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		MinuteUsed:      minuteUsed,
		MinuteRemaining: remaining(limits.PerMinute, minuteUsed),
		DayUsed:         dayUsed,
		DayRemaining:    remaining(limits.PerDay, dayUsed),
	}, nil
}

func (c *RedisController) usage(ctx context.Context, key string, now time.Time) (minuteUsed, dayUsed int, err error) {
	minuteKey := minutePrefix + key
	cutoff := strconv.FormatInt(now.Add(-windowSize).UnixNano(), 10)

	pipe := c.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, minuteKey, "-inf", cutoff)
	membersCmd := pipe.ZRange(ctx, minuteKey, 0, -1)
	dayCmd := pipe.Get(ctx, c.dayKey(key, now))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		c.logger.Error("admission usage read failed",
			zap.String("key", key),
			zap.Error(err))
		return 0, 0, fmt.Errorf("admission usage read failed: %w", err)
	}

	for _, member := range membersCmd.Val() {
		minuteUsed += memberCount(member)
	}

	if raw, err := dayCmd.Result(); err == nil {
		dayUsed, _ = strconv.Atoi(raw)
	}

	return minuteUsed, dayUsed, nil
}

func (c *RedisController) dayKey(key string, now time.Time) string {
	return dayPrefix + key + ":" + now.Format("2006-01-02")
}

// memberCount parses the count suffix off a "uuid:count" member.
func memberCount(member string) int {
	idx := strings.LastIndexByte(member, ':')
	if idx < 0 {
		return 1
	}
	count, err := strconv.Atoi(member[idx+1:])
	if err != nil || count < 1 {
		return 1
	}
	return count
}

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-pipeline/internal/pkg/httpretry"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
)

// DefaultMaxRateWait bounds how long Wait blocks before giving the send
// back to the caller. It must stay well below the stale-item age, because
// items wait here after they are claimed.
const DefaultMaxRateWait = time.Minute + 15*time.Second

// RateLimiter provides atomic send-rate limiting shared by every worker
// process through Redis. It implements delivery.Limiter.
type RateLimiter struct {
	redis    *redis.Client
	script   *redis.Script
	provider string
	limits   RateLimit
	maxWait  time.Duration
	now      func() time.Time
}

// RateLimit bounds sends per window. A non-positive limit disables that
// window.
type RateLimit struct {
	PerSecond int
	PerMinute int
	Daily     int
}

// Lua script for atomic multi-window rate limit check.
// All limits are checked before any counter is incremented.
const multiLimitLuaScript = `
local secondKey = KEYS[1]
local minuteKey = KEYS[2]
local dailyKey = KEYS[3]
local increment = tonumber(ARGV[1])
local secondLimit = tonumber(ARGV[2])
local minuteLimit = tonumber(ARGV[3])
local dailyLimit = tonumber(ARGV[4])

local secCurrent = tonumber(redis.call("GET", secondKey) or "0")
local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dailyKey) or "0")

if secondLimit > 0 and secCurrent + increment > secondLimit then
    return {0, 1, secCurrent}
end
if minuteLimit > 0 and minCurrent + increment > minuteLimit then
    return {0, 2, minCurrent}
end
if dailyLimit > 0 and dayCurrent + increment > dailyLimit then
    return {0, 3, dayCurrent}
end

local newSec = redis.call("INCRBY", secondKey, increment)
if newSec == increment then
    redis.call("EXPIRE", secondKey, 2)
end
local newMin = redis.call("INCRBY", minuteKey, increment)
if newMin == increment then
    redis.call("EXPIRE", minuteKey, 120)
end
local newDay = redis.call("INCRBY", dailyKey, increment)
if newDay == increment then
    redis.call("EXPIRE", dailyKey, 90000)
end

return {1, 0, newDay}
`

// NewRateLimiter creates a limiter for one provider.
func NewRateLimiter(client *redis.Client, provider string, limits RateLimit) *RateLimiter {
	return &RateLimiter{
		redis:    client,
		script:   redis.NewScript(multiLimitLuaScript),
		provider: provider,
		limits:   limits,
		maxWait:  DefaultMaxRateWait,
		now:      time.Now,
	}
}

// WithMaxWait sets the longest single wait Wait will sleep through.
func (r *RateLimiter) WithMaxWait(d time.Duration) *RateLimiter {
	if d > 0 {
		r.maxWait = d
	}
	return r
}

// WithClock replaces time.Now, for tests.
func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	r.now = now
	return r
}

// CheckAndIncrement atomically checks every window and, if all pass, counts
// n sends. When denied it returns how long to wait before trying again.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, n int) (allowed bool, wait time.Duration, err error) {
	now := r.now().UTC()
	secondKey := fmt.Sprintf("ratelimit:%s:sec:%d", r.provider, now.Unix())
	minuteKey := fmt.Sprintf("ratelimit:%s:min:%d", r.provider, now.Unix()/60)
	dailyKey := fmt.Sprintf("ratelimit:%s:day:%s", r.provider, now.Format("2006-01-02"))

	result, err := r.script.Run(ctx, r.redis,
		[]string{secondKey, minuteKey, dailyKey},
		n, r.limits.PerSecond, r.limits.PerMinute, r.limits.Daily,
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}

	if result[0].(int64) == 1 {
		return true, 0, nil
	}
	switch result[1].(int64) {
	case 1:
		wait = now.Truncate(time.Second).Add(time.Second).Sub(now)
	case 2:
		wait = now.Truncate(time.Minute).Add(time.Minute).Sub(now)
	default:
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
		wait = next.Sub(now)
	}
	return false, wait, nil
}

// Wait blocks until one send is allowed or ctx is done. When the exhausted
// window resets later than the max wait, as the daily window does, it
// returns a *delivery.RateLimitedError instead of sleeping.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, wait, err := r.CheckAndIncrement(ctx, 1)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if wait > r.maxWait {
			return &delivery.RateLimitedError{RetryAfter: wait}
		}
		if err := httpretry.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Usage returns the current counters for each window.
func (r *RateLimiter) Usage(ctx context.Context) (map[string]int64, error) {
	now := r.now().UTC()
	pipe := r.redis.Pipeline()
	secCmd := pipe.Get(ctx, fmt.Sprintf("ratelimit:%s:sec:%d", r.provider, now.Unix()))
	minCmd := pipe.Get(ctx, fmt.Sprintf("ratelimit:%s:min:%d", r.provider, now.Unix()/60))
	dayCmd := pipe.Get(ctx, fmt.Sprintf("ratelimit:%s:day:%s", r.provider, now.Format("2006-01-02")))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	sec, _ := secCmd.Int64()
	minute, _ := minCmd.Int64()
	day, _ := dayCmd.Int64()
	return map[string]int64{
		"second_current": sec,
		"second_limit":   int64(r.limits.PerSecond),
		"minute_current": minute,
		"minute_limit":   int64(r.limits.PerMinute),
		"daily_current":  day,
		"daily_limit":    int64(r.limits.Daily),
	}, nil
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter kept in Redis, so every API replica
// shares the same budget per client. Each window allows maxRequests calls.
type RateLimiter struct {
	client      redis.Scripter
	maxRequests int
	window      time.Duration
}

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// allowScript runs atomically, so concurrent requests cannot overshoot the
// window budget.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local current_time = tonumber(ARGV[3])

	local current = redis.call('GET', key)

	if current == false then
		redis.call('SET', key, 1, 'EX', window)
		return {1, max_requests - 1, current_time + window}
	end

	current = tonumber(current)
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		redis.call('EXPIRE', key, window)
		ttl = window
	end
	if current < max_requests then
		redis.call('INCR', key)
		return {1, max_requests - current - 1, current_time + ttl}
	end
	return {0, 0, current_time + ttl}
`)

// New creates a limiter allowing maxRequests per window.
// Example: New(client, 100, time.Minute)
func New(client redis.Scripter, maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:      client,
		maxRequests: maxRequests,
		window:      window,
	}
}

func redisKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// Allow consumes one request from the window of key.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	windowSeconds := max(int(rl.window.Seconds()), 1)

	raw, err := allowScript.Run(ctx, rl.client, []string{redisKey(key)},
		rl.maxRequests,
		windowSeconds,
		now.Unix(),
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	return parseResult(raw)
}

func parseResult(raw any) (Result, error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit result %v", raw)
	}
	nums := make([]int64, 3)
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return Result{}, fmt.Errorf("unexpected rate limit value %v", v)
		}
		nums[i] = n
	}
	return Result{
		Allowed:   nums[0] == 1,
		Remaining: int(nums[1]),
		Reset:     time.Unix(nums[2], 0),
	}, nil
}

// MaxRequests returns the budget of one window.
func (rl *RateLimiter) MaxRequests() int {
	return rl.maxRequests
}

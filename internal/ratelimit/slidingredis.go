package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingScript trims entries older than the window and admits the caller only while
// the set holds fewer than max members. Rejected calls are not recorded, so a client
// hammering a closed window does not push its own reset further out.
//
// KEYS[1] set key; ARGV: now (ms), window (ms), max, member.
// Returns {allowed, count, oldest score in ms}.
var slidingScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < max then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = now
if oldest[2] then
  first = tonumber(oldest[2])
end
return {allowed, count, first}
`)

// SlidingWindow limits requests over a rolling window using one Redis sorted set per key.
type SlidingWindow struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

func (l SlidingWindow) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow implements Limiter. The reset time is when the oldest admitted request leaves the window.
func (l SlidingWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	now := l.now()
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	res, err := slidingScript.Run(ctx, l.Client, []string{l.Prefix + key},
		now.UnixMilli(), window.Milliseconds(), max, uuid.NewString()).Int64Slice()
	if err != nil {
		return false, 0, now.Add(window), err
	}
	if len(res) != 3 {
		return false, 0, now.Add(window), fmt.Errorf("unexpected sliding window reply %v", res)
	}

	remaining := max - int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	reset := time.UnixMilli(res[2]).Add(window)
	return res[0] == 1, remaining, reset, nil
}

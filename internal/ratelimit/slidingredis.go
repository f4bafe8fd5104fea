package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims expired attempts, records the new one when there is
// room, and returns {allowed, count, oldestScore} in a single round trip.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
local allowed = 0
if count < limit then
  redis.call("ZADD", key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call("PEXPIRE", key, math.ceil(window / 1000000))
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local first = ARGV[1]
if oldest[2] then
  first = oldest[2]
end
return {allowed, count, first}
`)

// Limiter counts attempts per key in a Redis sorted set scored by
// nanosecond timestamps.
type Limiter struct {
	Client redis.Scripter
	Prefix string
	now    func() time.Time
}

// Allow records an attempt for key. reset is when the oldest attempt in the
// window expires and a slot frees up.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error) {
	now := time.Now()
	if l.now != nil {
		now = l.now()
	}
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	res, err := slidingWindow.Run(ctx, l.Client, []string{l.Prefix + key},
		now.UnixNano(), window.Nanoseconds(), max, uuid.NewString()).Slice()
	if err != nil {
		return false, 0, time.Time{}, err
	}
	if len(res) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	admitted, _ := res[0].(int64)
	count, _ := res[1].(int64)
	oldest := now.UnixNano()
	if s, ok := res[2].(string); ok {
		if f, perr := strconv.ParseFloat(s, 64); perr == nil {
			oldest = int64(f)
		}
	}

	remaining = max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return admitted == 1, remaining, time.Unix(0, oldest).Add(window), nil
}

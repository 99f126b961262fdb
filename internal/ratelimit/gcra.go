package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// gcraScript is a GCRA limiter: each key holds the theoretical
// arrival time (tat) of the next request in milliseconds. A request is
// admitted when it arrives no earlier than tat minus the burst allowance.
// Redis TIME keeps every caller on the same clock.
const gcraScript = `
local interval = 1000 / tonumber(ARGV[1])
local burst = tonumber(ARGV[2])

local clock = redis.call("TIME")
local now = (clock[1] * 1000) + math.floor(clock[2] / 1000)

local tat = tonumber(redis.call("GET", KEYS[1]))
if tat == nil or tat < now then
  tat = now
end

local nextTat = tat + interval
local admitAt = nextTat - (interval * burst)

if now < admitAt then
  return {0, 0, math.ceil(admitAt - now), math.ceil(tat - now), now}
end

redis.call("SET", KEYS[1], tostring(nextTat), "PX", math.ceil(nextTat - now))
local remaining = math.floor((now - admitAt) / interval)
return {1, remaining, 0, math.ceil(nextTat - now), now}
`

var (
	ErrNotConfigured = errors.New("rate limiter not configured")
	errEmptyKey      = errors.New("rate limiter key is empty")
	errBadLimits     = errors.New("rate limiter rate and burst must be positive")
	errBadResponse   = errors.New("invalid rate limit script response")
)

type GCRA struct {
	client redis.Scripter
	script *redis.Script
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func NewGCRA(client redis.Scripter) *GCRA {
	return &GCRA{
		client: client,
		script: redis.NewScript(gcraScript),
	}
}

func (t *GCRA) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	if t == nil || t.client == nil {
		return nil, ErrNotConfigured
	}
	if key == "" {
		return nil, errEmptyKey
	}
	if rate <= 0 || burst <= 0 {
		return nil, errBadLimits
	}

	res, err := t.script.Run(ctx, t.client, []string{key}, rate, burst).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 5 {
		return nil, errBadResponse
	}

	now := time.UnixMilli(res[4])
	return &Result{
		Allowed:    res[0] == 1,
		Limit:      burst,
		Remaining:  int(min(res[1], int64(burst))),
		ResetTime:  now.Add(time.Duration(res[3]) * time.Millisecond),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

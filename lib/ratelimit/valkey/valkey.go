// Package valkey is a rate limiter shared between wall instances. Each
// decision runs as one Lua script on the server, so concurrent posts from the
// same client can't both pass.
package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TecharoHQ/wall/internal"
	"github.com/TecharoHQ/wall/lib/ratelimit"
	storevalkey "github.com/TecharoHQ/wall/lib/store/valkey"
	valkey "github.com/redis/go-redis/v9"
)

func init() {
	ratelimit.Register("valkey", Factory{})
}

// KeyPrefix namespaces limiter records in a shared keyspace.
const KeyPrefix = "wall:ratelimit:"

// Reply layout: {allowed, reason, remaining, wait_ms}. Reason is 0 (none),
// 1 (cooldown) or 2 (hourly cap). Records are hashes of milliseconds since
// the epoch and expire once they are idle for a whole window.
var checkAndConsume = valkey.NewScript(`
local now = tonumber(ARGV[1])
local cooldown = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local max = tonumber(ARGV[4])

local rec = redis.call('HMGET', KEYS[1], 'count', 'reset_at', 'last_post')
if not rec[1] then
  redis.call('HSET', KEYS[1], 'count', 1, 'reset_at', now + window, 'last_post', now)
  redis.call('PEXPIRE', KEYS[1], window)
  return {1, 0, max - 1, 0}
end

local count = tonumber(rec[1])
local reset_at = tonumber(rec[2])
local last_post = tonumber(rec[3])

local elapsed = now - last_post
if elapsed < cooldown then
  return {0, 1, max - count, cooldown - elapsed}
end

if now > reset_at then
  count = 0
  reset_at = now + window
end

if count >= max then
  return {0, 2, 0, reset_at - now}
end

count = count + 1
redis.call('HSET', KEYS[1], 'count', count, 'reset_at', reset_at, 'last_post', now)
redis.call('PEXPIRE', KEYS[1], window)
return {1, 0, max - count, 0}
`)

const (
	reasonNone = iota
	reasonCooldown
	reasonHourly
)

// Factory builds valkey limiters from storevalkey.Config parameters.
type Factory struct{}

func (Factory) Build(ctx context.Context, limits ratelimit.Limits, data json.RawMessage) (ratelimit.Limiter, error) {
	if err := limits.Valid(); err != nil {
		return nil, err
	}

	config, err := storevalkey.ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ratelimit.ErrBadConfig, err)
	}

	rdb, err := storevalkey.Dial(ctx, config)
	if err != nil {
		return nil, err
	}

	return New(rdb, limits), nil
}

func (Factory) Valid(data json.RawMessage) error {
	if _, err := storevalkey.ParseConfig(data); err != nil {
		return fmt.Errorf("%w: %w", ratelimit.ErrBadConfig, err)
	}

	return nil
}

// Limiter implements ratelimit.Limiter on top of valkey.
type Limiter struct {
	rdb    valkey.Scripter
	limits ratelimit.Limits
}

func New(rdb valkey.Scripter, limits ratelimit.Limits) *Limiter {
	return &Limiter{
		rdb:    rdb,
		limits: limits,
	}
}

// Key is where the record for clientKey lives. Client keys are hashed so
// that arbitrary header contents can't shape the keyspace.
func Key(clientKey string) string {
	return KeyPrefix + internal.FastHash(clientKey)
}

func (l *Limiter) CheckAndConsume(ctx context.Context, clientKey string, now time.Time) (ratelimit.Decision, error) {
	reply, err := checkAndConsume.Run(ctx, l.rdb,
		[]string{Key(clientKey)},
		now.UnixMilli(),
		l.limits.Cooldown.Milliseconds(),
		l.limits.Window.Milliseconds(),
		l.limits.MaxPerHour,
	).Int64Slice()
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("%w: %w", ratelimit.ErrBackend, err)
	}

	if len(reply) != 4 {
		return ratelimit.Decision{}, fmt.Errorf("%w: script returned %d values, wanted 4", ratelimit.ErrBackend, len(reply))
	}

	remaining := int(reply[2])
	wait := time.Duration(reply[3]) * time.Millisecond

	var d ratelimit.Decision
	switch reply[1] {
	case reasonNone:
		d = ratelimit.Allow(remaining)
	case reasonCooldown:
		d = ratelimit.Deny(ratelimit.ReasonCooldown, ratelimit.CooldownRetry(wait), remaining)
	case reasonHourly:
		d = ratelimit.Deny(ratelimit.ReasonHourly, ratelimit.HourlyRetry(wait), remaining)
	default:
		return ratelimit.Decision{}, fmt.Errorf("%w: unknown reason code %d", ratelimit.ErrBackend, reply[1])
	}

	return ratelimit.Observe(d), nil
}

// Sweep is a no-op: idle records expire on the server.
func (l *Limiter) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

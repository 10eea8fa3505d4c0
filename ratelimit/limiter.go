// Package ratelimit provides fixed-window request admission control backed by
// a shared Redis counter store, so every service instance enforces the same limits.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/redis/go-redis/v9"
)

// Tier scales an endpoint's base limit per caller plan
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Multiplier returns the limit multiplier for the tier
func (t Tier) Multiplier() int {
	switch t {
	case TierPro:
		return 3
	case TierEnterprise:
		return 10
	default:
		return 1
	}
}

// Config describes one endpoint's window
type Config struct {
	MaxRequests int
	Window      time.Duration

	// BlockDuration, when positive, punishes a key that exceeds its limit by
	// blocking it outright for this duration, independent of window expiry
	BlockDuration time.Duration
}

// Scaled returns the config with MaxRequests multiplied for the tier
func (c Config) Scaled(tier Tier) Config {
	c.MaxRequests = c.MaxRequests * tier.Multiplier()
	return c
}

// Decision is the outcome of an admission check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter is a fixed-window rate limiter. A request is admitted while the
// current window's count is below the limit; Consume is called only after an
// IsAllowed check passes. Slight over-admission under concurrent contention
// for the same key is tolerated.
type Limiter interface {
	IsAllowed(ctx context.Context, key string, cfg Config) (*Decision, error)
	Consume(ctx context.Context, key string, cfg Config) error
	IsBlocked(ctx context.Context, key string) (bool, error)
	Block(ctx context.Context, key string, dur time.Duration) error
	Reset(ctx context.Context, key string) error
}

// RedisLimiter implements Limiter on Redis counters with per-window TTLs.
// When the counter store is unreachable the limiter fails open: availability
// is prioritized over strict enforcement.
type RedisLimiter struct {
	rc     *redis.Client
	prefix string
	logger *log.Logger
}

// NewRedisLimiter creates a limiter using the given client and key prefix
func NewRedisLimiter(rc *redis.Client, prefix string, logger *log.Logger) *RedisLimiter {
	if prefix == "" {
		prefix = "kage:ratelimit:"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RedisLimiter{rc: rc, prefix: prefix, logger: logger}
}

// windowKey keys the counter by floor(now/window): a fixed window, not a
// rolling log. A deliberate precision/cost tradeoff.
func (l *RedisLimiter) windowKey(key string, cfg Config, now time.Time) (string, time.Time) {
	windowStart := now.Truncate(cfg.Window)
	reset := windowStart.Add(cfg.Window)
	return fmt.Sprintf("%s%s:%d", l.prefix, key, windowStart.UnixMilli()), reset
}

func (l *RedisLimiter) blockKey(key string) string {
	return l.prefix + "blocked:" + key
}

// IsAllowed checks admission for the key without consuming quota
func (l *RedisLimiter) IsAllowed(ctx context.Context, key string, cfg Config) (*Decision, error) {
	now := utils.UTCNow()

	blocked, err := l.IsBlocked(ctx, key)
	if err != nil {
		return l.failOpen(key, cfg, now, err), nil
	}
	if blocked {
		ttl, err := l.rc.TTL(ctx, l.blockKey(key)).Result()
		if err != nil || ttl < 0 {
			ttl = cfg.Window
		}
		return &Decision{
			Allowed:    false,
			Limit:      cfg.MaxRequests,
			Remaining:  0,
			ResetTime:  now.Add(ttl),
			RetryAfter: ttl,
		}, nil
	}

	wk, reset := l.windowKey(key, cfg, now)
	count, err := l.rc.Get(ctx, wk).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return l.failOpen(key, cfg, now, err), nil
	}

	remaining := cfg.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	decision := &Decision{
		Allowed:   count < cfg.MaxRequests,
		Limit:     cfg.MaxRequests,
		Remaining: remaining,
		ResetTime: reset,
	}
	if !decision.Allowed {
		decision.RetryAfter = reset.Sub(now)
		if cfg.BlockDuration > 0 {
			if err := l.Block(ctx, key, cfg.BlockDuration); err != nil {
				l.logger.Printf("ratelimit: failed to block key %s: %v", key, err)
			}
		}
	}
	return decision, nil
}

// Consume increments the counter for the current window. Callers invoke it
// only after an IsAllowed check passes; check-then-consume is one logical
// operation that must not be skipped.
func (l *RedisLimiter) Consume(ctx context.Context, key string, cfg Config) error {
	now := utils.UTCNow()
	wk, _ := l.windowKey(key, cfg, now)

	count, err := l.rc.Incr(ctx, wk).Result()
	if err != nil {
		l.logger.Printf("ratelimit: consume failed for key %s, failing open: %v", key, err)
		return nil
	}
	if count == 1 {
		// First hit of the window owns the TTL
		if err := l.rc.Expire(ctx, wk, cfg.Window).Err(); err != nil {
			l.logger.Printf("ratelimit: failed to set window TTL for key %s: %v", key, err)
		}
	}
	return nil
}

// IsBlocked reports whether the key is in the punished state
func (l *RedisLimiter) IsBlocked(ctx context.Context, key string) (bool, error) {
	n, err := l.rc.Exists(ctx, l.blockKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Block places a key in the blocked state for the duration
func (l *RedisLimiter) Block(ctx context.Context, key string, dur time.Duration) error {
	return l.rc.Set(ctx, l.blockKey(key), 1, dur).Err()
}

// Reset clears the key's counters and block state
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	iter := l.rc.Scan(ctx, 0, l.prefix+key+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := l.rc.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return l.rc.Del(ctx, l.blockKey(key)).Err()
}

// failOpen allows the request when the counter store is unreachable
func (l *RedisLimiter) failOpen(key string, cfg Config, now time.Time, cause error) *Decision {
	l.logger.Printf("ratelimit: counter store unreachable for key %s, failing open: %v", key, cause)
	return &Decision{
		Allowed:   true,
		Limit:     cfg.MaxRequests,
		Remaining: cfg.MaxRequests,
		ResetTime: now.Add(cfg.Window),
	}
}

package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited means the IP spent its budget for the current window:
	// too many generated codes, or too many confirms that missed.
	ErrRateLimited = errors.New("qr throttle: budget spent")
	// ErrRedisUnavailable wraps a failed counter read or update. Callers
	// must not treat it as "under budget".
	ErrRedisUnavailable = errors.New("qr throttle: redis unavailable")
)

// Config holds rate limiter tuning parameters.
type Config struct {
	// Prefix namespaces the counters; engines sharing a Redis keep separate
	// budgets as long as their prefixes differ. Empty means "qr".
	Prefix                 string
	EnableGenerateThrottle bool
	EnableConfirmThrottle  bool
	MaxGeneratePerWindow   int
	MaxFailedConfirms      int
	Window                 time.Duration
}

// Limiter enforces per-IP budgets for session generation and failed
// confirmations using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "qr"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckGenerate counts one generate request for ip and fails once the
// window's budget is exceeded. Requests without an IP are not throttled.
func (l *Limiter) CheckGenerate(ctx context.Context, ip string) error {
	if l == nil || !l.config.EnableGenerateThrottle || ip == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.generateKey(ip), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxGeneratePerWindow) {
		return ErrRateLimited
	}

	return nil
}

// CheckConfirm reports whether ip has already spent its failed-confirm
// budget. It does not count the current request.
func (l *Limiter) CheckConfirm(ctx context.Context, ip string) error {
	if l == nil || !l.config.EnableConfirmThrottle || ip == "" {
		return nil
	}

	count, err := l.redis.Get(ctx, l.confirmKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxFailedConfirms) {
		return ErrRateLimited
	}

	return nil
}

// RecordConfirmFailure counts a confirm that ended in not-found or forbidden.
func (l *Limiter) RecordConfirmFailure(ctx context.Context, ip string) error {
	if l == nil || !l.config.EnableConfirmThrottle || ip == "" {
		return nil
	}

	_, err := l.incrementWithTTL(ctx, l.confirmKey(ip), l.config.Window)
	return err
}

// FailedConfirms returns the current failed-confirm counter for ip.
func (l *Limiter) FailedConfirms(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, l.confirmKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: TTL is only set on the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) generateKey(ip string) string {
	return l.config.Prefix + ":rg:" + ip
}

func (l *Limiter) confirmKey(ip string) string {
	return l.config.Prefix + ":rc:" + ip
}

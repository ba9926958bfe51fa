package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// connectRedis returns a pinged client and a cleanup func. Transient dial
// failures are retried with exponential backoff.
func connectRedis(ctx context.Context, cfg Redis, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.Addr
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn("using embedded redis; sessions are lost on restart", slog.String("addr", addr))
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	ping := func() error {
		return client.Ping(ctx).Err()
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("redis not ready",
			slog.String("addr", addr),
			slog.Duration("retry_in", wait),
			slog.Any("error", err),
		)
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(backoff.WithMaxRetries(policy, cfg.ConnectRetries), ctx), notify); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, cleanup, nil
}

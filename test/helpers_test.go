//go:build integration
// +build integration

package test

import (
	"context"
	"testing"

	goQR "github.com/MrEthical07/goQR"
	"github.com/redis/go-redis/v9"
)

const (
	routePurchase = "purchase-approve"
	routeDevice   = "device-login"
)

func newIntegrationEngine(t *testing.T, rdb redis.UniversalClient, singleUse bool) *goQR.Engine {
	t.Helper()

	cfg := goQR.DefaultConfig()
	cfg.Session.Salt = []byte("integration-salt-0123456789abcdef0123")
	cfg.Session.SingleUse = singleUse
	cfg.Session.RedisPrefix = "qrit"

	engine, err := goQR.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithRoutes("https://example.com", map[string]string{
			routePurchase: "/qr/confirm",
			routeDevice:   "/qr/device/{code_hash}",
		}).
		WithLoginHandler(func(_ context.Context, req goQR.LoginRequest) (goQR.LoginResult, error) {
			return goQR.LoginResult{"subject": req.Subject.ID()}, nil
		}).
		WithConfirmHandler(func(context.Context, goQR.ConfirmRequest) bool { return true }).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

package goQR

import (
	"context"
	"errors"
	"testing"
)

func noopLogin(context.Context, LoginRequest) (LoginResult, error) { return nil, nil }

func noopConfirm(context.Context, ConfirmRequest) bool { return true }

func TestBuildRequiresRedis(t *testing.T) {
	_, err := New().
		WithConfig(testConfig()).
		WithRoutes("https://example.com", map[string]string{routePurchase: "/qr/confirm"}).
		WithLoginHandler(noopLogin).
		WithConfirmHandler(noopConfirm).
		Build()
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuildRequiresSalt(t *testing.T) {
	_, rdb := newTestRedis(t)

	_, err := New().
		WithRedis(rdb).
		WithRoutes("https://example.com", map[string]string{routePurchase: "/qr/confirm"}).
		WithLoginHandler(noopLogin).
		WithConfirmHandler(noopConfirm).
		Build()
	if !errors.Is(err, ErrMissingSalt) {
		t.Fatalf("expected ErrMissingSalt, got %v", err)
	}
}

func TestBuildRequiresHandlers(t *testing.T) {
	_, rdb := newTestRedis(t)

	_, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithRoutes("https://example.com", map[string]string{routePurchase: "/qr/confirm"}).
		WithLoginHandler(noopLogin).
		Build()
	if !errors.Is(err, ErrMissingHandler) || !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrMissingHandler, got %v", err)
	}
}

func TestBuildRequiresResolver(t *testing.T) {
	_, rdb := newTestRedis(t)

	_, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithLoginHandler(noopLogin).
		WithConfirmHandler(noopConfirm).
		Build()
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithRoutes("https://example.com", map[string]string{routePurchase: "/qr/confirm"}).
		WithLoginHandler(noopLogin).
		WithConfirmHandler(noopConfirm)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected second Build to fail, got %v", err)
	}
}

func TestBuildConfigImmutabilityAgainstExternalMutation(t *testing.T) {
	_, rdb := newTestRedis(t)

	cfg := testConfig()
	cfg.Session.Salt = []byte("0123456789abcdef0123456789abcdef")
	routes := map[string]string{routePurchase: "/qr/confirm"}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithRoutes("https://example.com", routes).
		WithLoginHandler(noopLogin).
		WithConfirmHandler(noopConfirm).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	before := engine.config.Session.Salt[0]
	cfg.Session.Salt[0] = 'X'
	delete(routes, routePurchase)

	if engine.config.Session.Salt[0] != before {
		t.Fatal("engine salt mutated from external config after build")
	}
	if _, err := engine.Generate(context.Background(), routePurchase, Anonymous()); err != nil {
		t.Fatalf("route table mutated from external map after build: %v", err)
	}
}

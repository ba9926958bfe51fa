package goQR

import (
	"context"
	"time"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
	AuditDropped   uint64
}

func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}

	latency, err := e.store.Ping(ctx)
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   latency,
		AuditDropped:   e.AuditDropped(),
	}
}

// FailedConfirms returns how many not-found or forbidden confirmations ip
// has made in the current throttle window.
func (e *Engine) FailedConfirms(ctx context.Context, ip string) (int, error) {
	if e == nil || e.limiter == nil {
		return 0, ErrEngineNotReady
	}
	ip = canonicalIP(ip)
	if ip == "" {
		return 0, nil
	}

	n, err := e.limiter.FailedConfirms(ctx, ip)
	if err != nil {
		return 0, mapConfirmLimiterError(err)
	}
	return n, nil
}

// SecurityReport summarizes the security-relevant settings an engine was
// built with. It never includes the salt.
type SecurityReport struct {
	SessionTTL             time.Duration
	ResultTTL              time.Duration
	SessionKeyLength       int
	SaltLength             int
	SingleUse              bool
	ImageCacheEnabled      bool
	GenerateThrottleActive bool
	ConfirmThrottleActive  bool
	AuditEnabled           bool
	MetricsEnabled         bool
	Warnings               []string
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return SecurityReport{
		SessionTTL:             cfg.Session.TTL,
		ResultTTL:              cfg.resultTTL(),
		SessionKeyLength:       cfg.Session.KeyLength,
		SaltLength:             len(cfg.Session.Salt),
		SingleUse:              cfg.Session.SingleUse,
		ImageCacheEnabled:      cfg.Image.CacheEnabled,
		GenerateThrottleActive: cfg.Security.EnableGenerateThrottle && cfg.Security.MaxGeneratePerWindow > 0,
		ConfirmThrottleActive:  cfg.Security.EnableConfirmThrottle && cfg.Security.MaxFailedConfirms > 0,
		AuditEnabled:           cfg.Audit.Enabled,
		MetricsEnabled:         cfg.Metrics.Enabled,
		Warnings:               cfg.Lint().Codes(),
	}
}

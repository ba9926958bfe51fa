package goQR

import (
	"testing"
	"time"
)

func TestLint_DefaultConfig(t *testing.T) {
	cfg := testConfig()
	codes := cfg.Lint().Codes()

	// Reusable sessions are the default, so that warning is expected.
	if !containsCode(codes, "session_reusable") {
		t.Error("expected session_reusable warning for default config")
	}
	if containsCode(codes, "rate_limits_disabled") {
		t.Error("default config should not have rate_limits_disabled (confirm throttle is on)")
	}
	if containsCode(codes, "salt_short") {
		t.Error("test salt is long enough")
	}
}

func TestLint_HardenedConfigClean(t *testing.T) {
	cfg := testConfig()
	cfg.Session.SingleUse = true
	cfg.Security.EnableGenerateThrottle = true

	if ws := cfg.Lint(); len(ws) != 0 {
		t.Fatalf("expected no warnings, got %v", ws.Codes())
	}
}

func TestLint_LongTTL(t *testing.T) {
	cfg := testConfig()
	cfg.Session.TTL = time.Hour
	if !containsCode(cfg.Lint().Codes(), "session_ttl_long") {
		t.Error("expected session_ttl_long warning")
	}
}

func TestLint_ShortSalt(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Salt = []byte("short")
	if !containsCode(cfg.Lint().Codes(), "salt_short") {
		t.Error("expected salt_short warning")
	}
}

func TestLint_RateLimitsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Security.EnableGenerateThrottle = false
	cfg.Security.EnableConfirmThrottle = false
	if !containsCode(cfg.Lint().Codes(), "rate_limits_disabled") {
		t.Error("expected rate_limits_disabled warning")
	}
}

func TestLint_ResultOutlivesSession(t *testing.T) {
	cfg := testConfig()
	cfg.Session.ResultTTL = cfg.Session.TTL * 2
	if !containsCode(cfg.Lint().Codes(), "result_outlives_session") {
		t.Error("expected result_outlives_session warning")
	}
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

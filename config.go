package goQR

import (
	"fmt"
	"strings"
	"time"
)

// Config holds every tunable of an [Engine]. Start from [DefaultConfig] and
// override fields; the Builder copies the value so later mutation of the
// caller's copy has no effect.
type Config struct {
	Session  SessionConfig
	Image    ImageConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls key generation and the lifetime of pending sessions.
type SessionConfig struct {
	TTL       time.Duration
	KeyLength int
	// Salt keys the session-key hash. It must be a process-wide secret and
	// never changes for the lifetime of the Engine.
	Salt        []byte
	RedisPrefix string
	// SingleUse deletes a session on its first accepted confirmation.
	SingleUse bool
	// ResultTTL bounds how long an accepted outcome waits for the poller.
	// Zero means TTL.
	ResultTTL time.Duration
}

/*
====================================
IMAGE CONFIG
====================================
*/

type ImageConfig struct {
	CacheEnabled bool
	// Size is the PNG edge length in pixels used by the default renderer.
	Size int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the per-IP throttles. Requests without a client IP
// in their context are never throttled.
type SecurityConfig struct {
	EnableGenerateThrottle bool
	MaxGeneratePerWindow   int
	EnableConfirmThrottle  bool
	MaxFailedConfirms      int
	ThrottleWindow         time.Duration
}

/*
====================================
AUDIT & METRICS
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// FlushTimeout bounds how long Engine.Close waits on a slow sink.
	FlushTimeout time.Duration
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. It has no salt, so it
// does not validate until one is set.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:         120 * time.Second,
			KeyLength:   50,
			RedisPrefix: "qr",
			SingleUse:   false,
		},
		Image: ImageConfig{
			CacheEnabled: true,
			Size:         256,
		},
		Security: SecurityConfig{
			EnableGenerateThrottle: false,
			MaxGeneratePerWindow:   30,
			EnableConfirmThrottle:  true,
			MaxFailedConfirms:      20,
			ThrottleWindow:         time.Minute,
		},
		Audit: AuditConfig{
			Enabled:      false,
			BufferSize:   1024,
			DropIfFull:   true,
			FlushTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.Salt = cloneBytes(cfg.Session.Salt)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c Config) resultTTL() time.Duration {
	if c.Session.ResultTTL > 0 {
		return c.Session.ResultTTL
	}
	return c.Session.TTL
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. Every error wraps
// [ErrConfiguration]; a missing salt is [ErrMissingSalt].
func (c *Config) Validate() error {
	// Session
	if len(c.Session.Salt) == 0 {
		return ErrMissingSalt
	}
	if c.Session.TTL <= 0 {
		return configErr("Session TTL must be > 0")
	}
	if c.Session.TTL < time.Second {
		return configErr("Session TTL must be at least 1s")
	}
	if c.Session.KeyLength < 16 {
		return configErr("Session KeyLength must be >= 16")
	}
	if c.Session.KeyLength > 1024 {
		return configErr("Session KeyLength must be <= 1024")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return configErr("Session RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " \t\r\n") {
		return configErr("Session RedisPrefix must not contain whitespace")
	}
	if c.Session.ResultTTL < 0 {
		return configErr("Session ResultTTL must be >= 0")
	}

	// Image
	if c.Image.Size < 64 || c.Image.Size > 4096 {
		return configErr("Image Size must be between 64 and 4096")
	}

	// Security
	if c.Security.EnableGenerateThrottle && c.Security.MaxGeneratePerWindow <= 0 {
		return configErr("Security MaxGeneratePerWindow must be > 0 when the generate throttle is enabled")
	}
	if c.Security.EnableConfirmThrottle && c.Security.MaxFailedConfirms <= 0 {
		return configErr("Security MaxFailedConfirms must be > 0 when the confirm throttle is enabled")
	}
	if (c.Security.EnableGenerateThrottle || c.Security.EnableConfirmThrottle) && c.Security.ThrottleWindow <= 0 {
		return configErr("Security ThrottleWindow must be > 0 when a throttle is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configErr("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.FlushTimeout < 0 {
		return configErr("Audit FlushTimeout must be >= 0")
	}

	return nil
}

func configErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}

/*
====================================
LINT
====================================
*/

// LintWarning is a setting that is valid but worth a second look.
type LintWarning struct {
	Code    string
	Message string
}

type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports valid but risky settings. It does not call Validate.
func (c Config) Lint() LintResult {
	var out LintResult

	if c.Session.TTL > 10*time.Minute {
		out = append(out, LintWarning{
			Code:    "session_ttl_long",
			Message: fmt.Sprintf("Session TTL %s keeps scannable codes alive for a long time", c.Session.TTL),
		})
	}
	if len(c.Session.Salt) > 0 && len(c.Session.Salt) < 32 {
		out = append(out, LintWarning{
			Code:    "salt_short",
			Message: "Session Salt is shorter than 32 bytes",
		})
	}
	if !c.Session.SingleUse {
		out = append(out, LintWarning{
			Code:    "session_reusable",
			Message: "sessions stay confirmable until they expire",
		})
	}
	if !c.Security.EnableGenerateThrottle && !c.Security.EnableConfirmThrottle {
		out = append(out, LintWarning{
			Code:    "rate_limits_disabled",
			Message: "both generate and confirm throttles are disabled",
		})
	}
	if c.resultTTL() > c.Session.TTL {
		out = append(out, LintWarning{
			Code:    "result_outlives_session",
			Message: "Session ResultTTL is longer than the session itself",
		})
	}

	return out
}

package goQR

import (
	"log/slog"

	internalaudit "github.com/MrEthical07/goQR/internal/audit"
	"github.com/MrEthical07/goQR/internal/rate"
	"github.com/MrEthical07/goQR/internal/stores"
	"github.com/MrEthical07/goQR/qrcode"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. It is meant to be configured once during
// initialization; Build may be called only once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	resolver  RouteResolver
	renderer  Renderer
	onLogin   LoginHandler
	onConfirm ConfirmHandler

	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared key-value store. Single-node, cluster and
// failover clients are all accepted.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithRouteResolver(resolver RouteResolver) *Builder {
	b.resolver = resolver
	return b
}

// WithRoutes installs a [RouteTable] as the route resolver.
func (b *Builder) WithRoutes(baseURL string, routes map[string]string) *Builder {
	copied := make(map[string]string, len(routes))
	for name, path := range routes {
		copied[name] = path
	}
	b.resolver = RouteTable{BaseURL: baseURL, Routes: copied}
	return b
}

// WithRenderer replaces the default PNG renderer.
func (b *Builder) WithRenderer(renderer Renderer) *Builder {
	b.renderer = renderer
	return b
}

func (b *Builder) WithLoginHandler(h LoginHandler) *Builder {
	b.onLogin = h
	return b
}

func (b *Builder) WithConfirmHandler(h ConfirmHandler) *Builder {
	b.onConfirm = h
	return b
}

// WithAuditSink sets the sink that receives audit events when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and collaborators and returns an
// immutable Engine. Every setup problem is reported as an error wrapping
// [ErrConfiguration].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, configErr("builder already used")
	}

	if b.redis == nil {
		return nil, configErr("redis client is required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.resolver == nil {
		return nil, configErr("route resolver is required")
	}
	if b.onLogin == nil || b.onConfirm == nil {
		return nil, ErrMissingHandler
	}

	renderer := b.renderer
	if renderer == nil {
		r, err := qrcode.New(qrcode.Config{Size: cfg.Image.Size})
		if err != nil {
			return nil, configErr(err.Error())
		}
		renderer = r
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:    cfg,
		store:     stores.NewQRSessionStore(b.redis, cfg.Session.RedisPrefix),
		resolver:  b.resolver,
		renderer:  renderer,
		onLogin:   b.onLogin,
		onConfirm: b.onConfirm,
		logger:    logger,
	}

	engine.limiter = rate.New(b.redis, rate.Config{
		Prefix:                 cfg.Session.RedisPrefix,
		EnableGenerateThrottle: cfg.Security.EnableGenerateThrottle,
		EnableConfirmThrottle:  cfg.Security.EnableConfirmThrottle,
		MaxGeneratePerWindow:   cfg.Security.MaxGeneratePerWindow,
		MaxFailedConfirms:      cfg.Security.MaxFailedConfirms,
		Window:                 cfg.Security.ThrottleWindow,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:      cfg.Audit.Enabled,
		BufferSize:   cfg.Audit.BufferSize,
		DropIfFull:   cfg.Audit.DropIfFull,
		FlushTimeout: cfg.Audit.FlushTimeout,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}

package goQR

import (
	"context"
	"errors"
	"time"

	internalflows "github.com/MrEthical07/goQR/internal/flows"
)

// ErrKeyCollision is returned when every drawn session key was already in
// use. With a 256-bit key this indicates a broken salt or random source.
var ErrKeyCollision = errors.New("qr session key collision")

// Generate creates a pending session owned by requester and bound to route,
// and returns its key and confirmation URL. The route is resolved before
// anything is written, so an unknown route leaves no state behind and
// returns [ErrRouteNotFound].
func (e *Engine) Generate(ctx context.Context, route string, requester Identity) (*GenerateResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	out, err := internalflows.RunGenerate(ctx, route, requester.toFlow(), e.generateFlowDeps())
	e.observe(MetricGenerateLatency, time.Since(start))
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		SessionKey: out.Key,
		URL:        out.URL,
		ExpiresIn:  e.config.Session.TTL,
	}, nil
}

// Render returns the image for a generated session, from the cache when
// possible.
func (e *Engine) Render(ctx context.Context, sessionKey, url string) ([]byte, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return internalflows.RunRender(ctx, sessionKey, url, e.renderFlowDeps())
}

// GenerateImage is Generate followed by Render. When rendering fails the
// session stays pending until its TTL expires.
func (e *Engine) GenerateImage(ctx context.Context, route string, requester Identity) (*GenerateResult, error) {
	res, err := e.Generate(ctx, route, requester)
	if err != nil {
		return nil, err
	}

	image, err := e.Render(ctx, res.SessionKey, res.URL)
	if err != nil {
		return nil, err
	}
	res.Image = image

	return res, nil
}

func (e *Engine) generateFlowDeps() internalflows.GenerateDeps {
	var cfg Config
	if e != nil {
		cfg = e.config
	}

	deps := internalflows.GenerateDeps{
		TTL:                 cfg.Session.TTL,
		ClientIPFromContext: clientIPFromContext,
		MapLimiterError:     mapGenerateLimiterError,
		MapStoreError:       mapQRStoreError,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.GenerateMetrics{
			GenerateSuccess:     int(MetricGenerateSuccess),
			GenerateFailure:     int(MetricGenerateFailure),
			GenerateRateLimited: int(MetricGenerateRateLimited),
		},
		Events: internalflows.GenerateEvents{
			Generate: auditEventGenerate,
		},
		Errors: internalflows.GenerateErrors{
			EngineNotReady:         ErrEngineNotReady,
			RouteNotFound:          ErrRouteNotFound,
			StoreUnavailable:       ErrStoreUnavailable,
			GenerateRateLimited:    ErrGenerateRateLimited,
			KeyGenerationExhausted: ErrKeyCollision,
		},
	}

	if e == nil || e.store == nil || e.resolver == nil {
		return deps
	}

	deps.NewKey = e.newSessionKey
	deps.ResolveURL = e.resolver.ResolveConfirmationURL
	deps.SaveIfAbsent = func(ctx context.Context, key string, record internalflows.SessionRecord, ttl time.Duration) (bool, error) {
		return e.store.SaveIfAbsent(ctx, key, sessionRecordToStore(record), ttl)
	}
	if e.limiter != nil {
		deps.CheckLimiter = e.limiter.CheckGenerate
	}

	return deps
}

func (e *Engine) renderFlowDeps() internalflows.RenderDeps {
	var cfg Config
	if e != nil {
		cfg = e.config
	}

	deps := internalflows.RenderDeps{
		CacheEnabled: cfg.Image.CacheEnabled,
		TTL:          cfg.Session.TTL,
		LogWarn:      e.logWarn,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		Metrics: internalflows.RenderMetrics{
			RenderCacheHit:  int(MetricRenderCacheHit),
			RenderCacheMiss: int(MetricRenderCacheMiss),
			RenderFailure:   int(MetricRenderFailure),
		},
		Errors: internalflows.RenderErrors{
			EngineNotReady: ErrEngineNotReady,
			RenderFailed:   ErrRenderFailed,
		},
	}

	if e == nil || e.renderer == nil {
		return deps
	}

	deps.Render = e.renderer.Render
	if e.store != nil {
		deps.GetImage = e.store.GetImage
		deps.SaveImage = e.store.SaveImage
	}

	return deps
}

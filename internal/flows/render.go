package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type RenderMetrics struct {
	RenderCacheHit  int
	RenderCacheMiss int
	RenderFailure   int
}

type RenderErrors struct {
	EngineNotReady error
	RenderFailed   error
}

type RenderDeps struct {
	CacheEnabled bool
	TTL          time.Duration

	GetImage  func(context.Context, string) ([]byte, bool, error)
	SaveImage func(context.Context, string, []byte, time.Duration) error
	Render    func(context.Context, string) ([]byte, error)

	LogWarn   func(context.Context, string, error)
	MetricInc func(int)

	Metrics RenderMetrics
	Errors  RenderErrors
}

// RunRender returns the image for key, serving it from the cache when one is
// present. The cache is an optimization only: read and write failures are
// logged and the image is rendered fresh.
func RunRender(ctx context.Context, key, url string, deps RenderDeps) ([]byte, error) {
	normalizeRenderDeps(&deps)

	if deps.Render == nil {
		return nil, deps.Errors.EngineNotReady
	}

	useCache := deps.CacheEnabled && deps.GetImage != nil && deps.SaveImage != nil && deps.TTL > 0

	if useCache {
		image, ok, err := deps.GetImage(ctx, key)
		switch {
		case err != nil:
			deps.LogWarn(ctx, "qr image cache read failed", err)
		case ok && len(image) > 0:
			deps.MetricInc(deps.Metrics.RenderCacheHit)
			return image, nil
		}
		deps.MetricInc(deps.Metrics.RenderCacheMiss)
	}

	image, err := deps.Render(ctx, url)
	if err != nil {
		deps.MetricInc(deps.Metrics.RenderFailure)
		return nil, fmt.Errorf("%w: %v", deps.Errors.RenderFailed, err)
	}

	if useCache {
		if err := deps.SaveImage(ctx, key, image, deps.TTL); err != nil {
			deps.LogWarn(ctx, "qr image cache write failed", err)
		}
	}

	return image, nil
}

func normalizeRenderDeps(deps *RenderDeps) {
	if deps.LogWarn == nil {
		deps.LogWarn = noopWarn
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.Errors.EngineNotReady == nil {
		deps.Errors.EngineNotReady = errors.New("engine not initialized")
	}
	if deps.Errors.RenderFailed == nil {
		deps.Errors.RenderFailed = errors.New("qr render failed")
	}
}

package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const maxKeyAttempts = 3

type GenerateMetrics struct {
	GenerateSuccess     int
	GenerateFailure     int
	GenerateRateLimited int
}

type GenerateEvents struct {
	Generate string
}

type GenerateErrors struct {
	EngineNotReady         error
	RouteNotFound          error
	StoreUnavailable       error
	GenerateRateLimited    error
	KeyGenerationExhausted error
}

type GenerateDeps struct {
	TTL time.Duration

	ClientIPFromContext func(context.Context) string
	CheckLimiter        func(context.Context, string) error
	MapLimiterError     func(error) error
	MapStoreError       func(error) error

	NewKey       func() (string, error)
	ResolveURL   func(context.Context, string, string) (string, error)
	SaveIfAbsent func(context.Context, string, SessionRecord, time.Duration) (bool, error)

	MetricInc func(int)
	EmitAudit func(context.Context, AuditRecord)

	Metrics GenerateMetrics
	Events  GenerateEvents
	Errors  GenerateErrors
}

type GenerateOutput struct {
	Key string
	URL string
}

// RunGenerate draws a key, resolves the confirmation URL for it and writes
// the pending record. The URL is resolved before the write so an unknown
// route leaves nothing behind.
func RunGenerate(ctx context.Context, route string, requester Identity, deps GenerateDeps) (GenerateOutput, error) {
	normalizeGenerateDeps(&deps)

	if deps.NewKey == nil || deps.ResolveURL == nil || deps.SaveIfAbsent == nil || deps.TTL <= 0 {
		return GenerateOutput{}, deps.Errors.EngineNotReady
	}

	fail := func(err error) (GenerateOutput, error) {
		deps.MetricInc(deps.Metrics.GenerateFailure)
		deps.EmitAudit(ctx, AuditRecord{
			EventType: deps.Events.Generate,
			Route:     route,
			Owner:     requester,
			Err:       err,
		})
		return GenerateOutput{}, err
	}

	if deps.CheckLimiter != nil {
		if err := deps.CheckLimiter(ctx, deps.ClientIPFromContext(ctx)); err != nil {
			mapped := deps.MapLimiterError(err)
			if errors.Is(mapped, deps.Errors.GenerateRateLimited) {
				deps.MetricInc(deps.Metrics.GenerateRateLimited)
			}
			return fail(mapped)
		}
	}

	record := SessionRecord{Owner: requester, Route: route}

	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := deps.NewKey()
		if err != nil {
			return fail(fmt.Errorf("%w: %v", deps.Errors.EngineNotReady, err))
		}

		url, err := deps.ResolveURL(ctx, route, key)
		if err != nil {
			return fail(fmt.Errorf("%w: %v", deps.Errors.RouteNotFound, err))
		}

		ok, err := deps.SaveIfAbsent(ctx, key, record, deps.TTL)
		if err != nil {
			return fail(deps.MapStoreError(err))
		}
		if !ok {
			continue
		}

		deps.MetricInc(deps.Metrics.GenerateSuccess)
		deps.EmitAudit(ctx, AuditRecord{
			EventType:  deps.Events.Generate,
			Route:      route,
			Owner:      requester,
			SessionKey: key,
			Success:    true,
		})
		return GenerateOutput{Key: key, URL: url}, nil
	}

	return fail(deps.Errors.KeyGenerationExhausted)
}

func normalizeGenerateDeps(deps *GenerateDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Errors.EngineNotReady == nil {
		deps.Errors.EngineNotReady = errors.New("engine not initialized")
	}
	if deps.Errors.RouteNotFound == nil {
		deps.Errors.RouteNotFound = errors.New("route not found")
	}
	if deps.Errors.KeyGenerationExhausted == nil {
		deps.Errors.KeyGenerationExhausted = errors.New("session key collision")
	}
}

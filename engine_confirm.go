package goQR

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goQR/internal"
	internalflows "github.com/MrEthical07/goQR/internal/flows"
	"github.com/MrEthical07/goQR/internal/stores"
)

// Confirm evaluates a confirmation of sessionKey by confirmer on route.
//
// An absent, expired or route-mismatched session yields [OutcomeNotFound]
// with [ErrSessionNotFound]; the three cases are indistinguishable. A
// session owned by a different principal yields [OutcomeForbidden] with
// [ErrForbidden]. Accepted sessions run the login or confirm handler and a
// handler failure returns [ErrCallbackFailed]. With Session.SingleUse the
// session is consumed before the handler runs, so a failed handler ends it
// as well.
func (e *Engine) Confirm(ctx context.Context, route, sessionKey string, confirmer Identity) (*ConfirmResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	out, err := internalflows.RunConfirm(ctx, route, sessionKey, confirmer.toFlow(), e.confirmFlowDeps())
	e.observe(MetricConfirmLatency, time.Since(start))

	res := &ConfirmResult{
		Outcome: Outcome(out.Outcome),
		Owner:   identityFromFlow(out.Owner),
		Subject: identityFromFlow(out.Subject),
	}
	if out.Login != nil {
		res.Login = LoginResult(out.Login)
	}

	return res, err
}

func (e *Engine) confirmFlowDeps() internalflows.ConfirmDeps {
	var cfg Config
	if e != nil {
		cfg = e.config
	}

	deps := internalflows.ConfirmDeps{
		SingleUse:           cfg.Session.SingleUse,
		ResultTTL:           cfg.resultTTL(),
		ClientIPFromContext: clientIPFromContext,
		MapLimiterError:     mapConfirmLimiterError,
		MapStoreError:       mapQRStoreError,
		IsStoreNotFound: func(err error) bool {
			return errors.Is(err, stores.ErrQRSessionNotFound)
		},
		ValidKey: internal.ValidSessionKey,
		LogWarn:  e.logWarn,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.ConfirmMetrics{
			ConfirmAcceptLogin:        int(MetricConfirmAcceptLogin),
			ConfirmAcceptConfirmation: int(MetricConfirmAcceptConfirmation),
			ConfirmNotFound:           int(MetricConfirmNotFound),
			ConfirmForbidden:          int(MetricConfirmForbidden),
			ConfirmCallbackFailed:     int(MetricConfirmCallbackFailed),
			ConfirmRateLimited:        int(MetricConfirmRateLimited),
		},
		Events: internalflows.ConfirmEvents{
			Confirm: auditEventConfirm,
		},
		Errors: internalflows.ConfirmErrors{
			EngineNotReady:     ErrEngineNotReady,
			SessionNotFound:    ErrSessionNotFound,
			Forbidden:          ErrForbidden,
			CallbackFailed:     ErrCallbackFailed,
			ConfirmRateLimited: ErrConfirmRateLimited,
		},
	}

	if e == nil || e.store == nil {
		return deps
	}

	deps.GetSession = func(ctx context.Context, key string) (internalflows.SessionRecord, error) {
		record, err := e.store.Get(ctx, key)
		if err != nil {
			return internalflows.SessionRecord{}, err
		}
		return sessionRecordFromStore(record), nil
	}
	deps.ConsumeSession = func(ctx context.Context, key string, accept func(internalflows.SessionRecord) bool) (internalflows.SessionRecord, bool, error) {
		record, consumed, err := e.store.Consume(ctx, key, func(r *stores.QRSessionRecord) bool {
			return accept(sessionRecordFromStore(r))
		})
		if err != nil {
			return internalflows.SessionRecord{}, false, err
		}
		return sessionRecordFromStore(record), consumed, nil
	}
	deps.SaveResult = func(ctx context.Context, key string, result internalflows.ResultRecord, ttl time.Duration) error {
		record, err := resultRecordToStore(result)
		if err != nil {
			return err
		}
		return e.store.SaveResult(ctx, key, record, ttl)
	}

	if e.onLogin != nil {
		deps.OnLogin = func(ctx context.Context, call internalflows.LoginCall) (map[string]any, error) {
			login, err := e.onLogin(ctx, LoginRequest{
				Owner:      identityFromFlow(call.Owner),
				Confirmer:  identityFromFlow(call.Confirmer),
				Subject:    identityFromFlow(call.Subject),
				Route:      call.Route,
				SessionKey: call.SessionKey,
			})
			return map[string]any(login), err
		}
	}
	if e.onConfirm != nil {
		deps.OnConfirm = func(ctx context.Context, call internalflows.ConfirmCall) bool {
			return e.onConfirm(ctx, ConfirmRequest{
				Owner:      identityFromFlow(call.Owner),
				Confirmer:  identityFromFlow(call.Confirmer),
				Route:      call.Route,
				SessionKey: call.SessionKey,
			})
		}
	}

	if e.limiter != nil {
		deps.CheckLimiter = e.limiter.CheckConfirm
		deps.RecordFailure = e.limiter.RecordConfirmFailure
	}

	return deps
}

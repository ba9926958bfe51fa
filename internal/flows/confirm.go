package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type ConfirmMetrics struct {
	ConfirmAcceptLogin        int
	ConfirmAcceptConfirmation int
	ConfirmNotFound           int
	ConfirmForbidden          int
	ConfirmCallbackFailed     int
	ConfirmRateLimited        int
}

type ConfirmEvents struct {
	Confirm string
}

type ConfirmErrors struct {
	EngineNotReady     error
	SessionNotFound    error
	Forbidden          error
	CallbackFailed     error
	ConfirmRateLimited error
}

// LoginCall is handed to the login callback when a confirmation turns into a
// login for Subject.
type LoginCall struct {
	Owner      Identity
	Confirmer  Identity
	Subject    Identity
	Route      string
	SessionKey string
}

// ConfirmCall is handed to the confirmation callback.
type ConfirmCall struct {
	Owner      Identity
	Confirmer  Identity
	Route      string
	SessionKey string
}

type ConfirmDeps struct {
	SingleUse bool
	ResultTTL time.Duration

	ClientIPFromContext func(context.Context) string
	CheckLimiter        func(context.Context, string) error
	RecordFailure       func(context.Context, string) error
	MapLimiterError     func(error) error
	MapStoreError       func(error) error
	IsStoreNotFound     func(error) bool
	ValidKey            func(string) bool

	GetSession     func(context.Context, string) (SessionRecord, error)
	ConsumeSession func(context.Context, string, func(SessionRecord) bool) (SessionRecord, bool, error)
	SaveResult     func(context.Context, string, ResultRecord, time.Duration) error

	OnLogin   func(context.Context, LoginCall) (map[string]any, error)
	OnConfirm func(context.Context, ConfirmCall) bool

	LogWarn   func(context.Context, string, error)
	MetricInc func(int)
	EmitAudit func(context.Context, AuditRecord)

	Metrics ConfirmMetrics
	Events  ConfirmEvents
	Errors  ConfirmErrors
}

type ConfirmOutput struct {
	Outcome Outcome
	Owner   Identity
	Subject Identity
	Login   map[string]any
}

// RunConfirm evaluates a confirmation attempt against the pending session
// and, when accepted, runs the matching callback. In single-use mode the
// session is deleted in the same transaction that reads it, and only when the
// attempt is accepted; a forbidden attempt leaves it in place.
func RunConfirm(ctx context.Context, route, key string, confirmer Identity, deps ConfirmDeps) (ConfirmOutput, error) {
	normalizeConfirmDeps(&deps)

	if deps.GetSession == nil || deps.OnLogin == nil || deps.OnConfirm == nil ||
		(deps.SingleUse && deps.ConsumeSession == nil) {
		return ConfirmOutput{}, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)
	audit := AuditRecord{
		EventType:  deps.Events.Confirm,
		Route:      route,
		Confirmer:  confirmer,
		SessionKey: key,
	}

	if deps.CheckLimiter != nil {
		if err := deps.CheckLimiter(ctx, ip); err != nil {
			mapped := deps.MapLimiterError(err)
			if errors.Is(mapped, deps.Errors.ConfirmRateLimited) {
				deps.MetricInc(deps.Metrics.ConfirmRateLimited)
			}
			audit.Err = mapped
			deps.EmitAudit(ctx, audit)
			return ConfirmOutput{}, mapped
		}
	}

	recordFailure := func() {
		if deps.RecordFailure == nil {
			return
		}
		if err := deps.RecordFailure(ctx, ip); err != nil {
			deps.LogWarn(ctx, "qr confirm failure counter update failed", err)
		}
	}

	notFound := func() (ConfirmOutput, error) {
		recordFailure()
		deps.MetricInc(deps.Metrics.ConfirmNotFound)
		audit.Outcome = OutcomeNotFound
		audit.Err = deps.Errors.SessionNotFound
		deps.EmitAudit(ctx, audit)
		return ConfirmOutput{Outcome: OutcomeNotFound}, deps.Errors.SessionNotFound
	}

	if !deps.ValidKey(key) {
		return notFound()
	}

	var (
		record SessionRecord
		err    error
	)
	if deps.SingleUse {
		// The record is gone before any callback runs, so a declined or
		// failed callback cannot be retried with the same key and no key
		// ever reaches a callback twice.
		record, _, err = deps.ConsumeSession(ctx, key, func(r SessionRecord) bool {
			if r.Route != route {
				return false
			}
			outcome, _ := Decide(r.Owner, confirmer)
			return outcome.Accepted()
		})
	} else {
		record, err = deps.GetSession(ctx, key)
	}
	if err != nil {
		if deps.IsStoreNotFound(err) {
			return notFound()
		}
		mapped := deps.MapStoreError(err)
		audit.Err = mapped
		deps.EmitAudit(ctx, audit)
		return ConfirmOutput{}, mapped
	}

	if record.Route != route {
		return notFound()
	}

	audit.Owner = record.Owner
	outcome, subject := Decide(record.Owner, confirmer)
	audit.Outcome = outcome
	out := ConfirmOutput{Outcome: outcome, Owner: record.Owner, Subject: subject}

	switch outcome {
	case OutcomeForbidden:
		recordFailure()
		deps.MetricInc(deps.Metrics.ConfirmForbidden)
		audit.Err = deps.Errors.Forbidden
		deps.EmitAudit(ctx, audit)
		return out, deps.Errors.Forbidden

	case OutcomeAcceptLogin:
		login, err := deps.OnLogin(ctx, LoginCall{
			Owner:      record.Owner,
			Confirmer:  confirmer,
			Subject:    subject,
			Route:      route,
			SessionKey: key,
		})
		if err != nil {
			return callbackFailed(ctx, deps, audit, out, err)
		}
		out.Login = login
		deps.MetricInc(deps.Metrics.ConfirmAcceptLogin)

	case OutcomeAcceptConfirmation:
		ok := deps.OnConfirm(ctx, ConfirmCall{
			Owner:      record.Owner,
			Confirmer:  confirmer,
			Route:      route,
			SessionKey: key,
		})
		if !ok {
			return callbackFailed(ctx, deps, audit, out, errors.New("confirm handler declined"))
		}
		deps.MetricInc(deps.Metrics.ConfirmAcceptConfirmation)
	}

	if deps.SaveResult != nil && deps.ResultTTL > 0 {
		err := deps.SaveResult(ctx, key, ResultRecord{
			Outcome: outcome,
			Owner:   record.Owner,
			Subject: subject,
			Route:   route,
			Login:   out.Login,
		}, deps.ResultTTL)
		if err != nil {
			deps.LogWarn(ctx, "qr result write failed", err)
		}
	}

	audit.Success = true
	deps.EmitAudit(ctx, audit)
	return out, nil
}

func callbackFailed(ctx context.Context, deps ConfirmDeps, audit AuditRecord, out ConfirmOutput, cause error) (ConfirmOutput, error) {
	err := fmt.Errorf("%w: %v", deps.Errors.CallbackFailed, cause)
	deps.MetricInc(deps.Metrics.ConfirmCallbackFailed)
	audit.Err = err
	deps.EmitAudit(ctx, audit)
	return out, err
}

func normalizeConfirmDeps(deps *ConfirmDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.IsStoreNotFound == nil {
		deps.IsStoreNotFound = func(error) bool { return false }
	}
	if deps.ValidKey == nil {
		deps.ValidKey = func(key string) bool { return key != "" }
	}
	if deps.LogWarn == nil {
		deps.LogWarn = noopWarn
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
	if deps.Errors.SessionNotFound == nil {
		deps.Errors.SessionNotFound = errors.New("session not found")
	}
	if deps.Errors.Forbidden == nil {
		deps.Errors.Forbidden = errors.New("forbidden")
	}
	if deps.Errors.CallbackFailed == nil {
		deps.Errors.CallbackFailed = errors.New("callback failed")
	}
}

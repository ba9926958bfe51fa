package flows

import (
	"context"
	"errors"
)

// PollStatus is what the generating client learns about its session.
type PollStatus int

const (
	PollPending PollStatus = iota
	PollConfirmed
)

type PollMetrics struct {
	PollPending   int
	PollConfirmed int
}

type PollEvents struct {
	Poll string
}

type PollErrors struct {
	EngineNotReady  error
	SessionNotFound error
	Forbidden       error
}

type PollDeps struct {
	ValidKey          func(string) bool
	MapStoreError     func(error) error
	IsSessionNotFound func(error) bool
	IsResultNotFound  func(error) bool

	GetSession func(context.Context, string) (SessionRecord, error)
	TakeResult func(context.Context, string, func(ResultRecord) bool) (ResultRecord, bool, error)

	MetricInc func(int)
	EmitAudit func(context.Context, AuditRecord)

	Metrics PollMetrics
	Events  PollEvents
	Errors  PollErrors
}

type PollOutput struct {
	Status  PollStatus
	Outcome Outcome
	Subject Identity
	Login   map[string]any
}

// RunPoll reports whether the session behind key has been accepted. A
// result is handed out once, and only to a requester allowed to see the
// session: the owning principal, or anyone for an anonymous session.
func RunPoll(ctx context.Context, route, key string, requester Identity, deps PollDeps) (PollOutput, error) {
	normalizePollDeps(&deps)

	if deps.GetSession == nil || deps.TakeResult == nil {
		return PollOutput{}, deps.Errors.EngineNotReady
	}

	audit := AuditRecord{
		EventType:  deps.Events.Poll,
		Route:      route,
		Confirmer:  requester,
		SessionKey: key,
	}
	finish := func(out PollOutput, err error) (PollOutput, error) {
		audit.Err = err
		audit.Success = err == nil
		deps.EmitAudit(ctx, audit)
		return out, err
	}

	if !deps.ValidKey(key) {
		return finish(PollOutput{}, deps.Errors.SessionNotFound)
	}

	result, taken, err := deps.TakeResult(ctx, key, func(r ResultRecord) bool {
		return r.Route == route && MayPoll(r.Owner, requester)
	})
	switch {
	case err == nil && result.Route == route:
		audit.Owner = result.Owner
		audit.Outcome = result.Outcome
		if !taken {
			return finish(PollOutput{}, deps.Errors.Forbidden)
		}
		deps.MetricInc(deps.Metrics.PollConfirmed)
		return finish(PollOutput{
			Status:  PollConfirmed,
			Outcome: result.Outcome,
			Subject: result.Subject,
			Login:   result.Login,
		}, nil)
	case err == nil:
		return finish(PollOutput{}, deps.Errors.SessionNotFound)
	case !deps.IsResultNotFound(err):
		return finish(PollOutput{}, deps.MapStoreError(err))
	}

	record, err := deps.GetSession(ctx, key)
	if err != nil {
		if deps.IsSessionNotFound(err) {
			return finish(PollOutput{}, deps.Errors.SessionNotFound)
		}
		return finish(PollOutput{}, deps.MapStoreError(err))
	}
	if record.Route != route {
		return finish(PollOutput{}, deps.Errors.SessionNotFound)
	}

	audit.Owner = record.Owner
	if !MayPoll(record.Owner, requester) {
		return finish(PollOutput{}, deps.Errors.Forbidden)
	}

	deps.MetricInc(deps.Metrics.PollPending)
	return finish(PollOutput{Status: PollPending}, nil)
}

func normalizePollDeps(deps *PollDeps) {
	if deps.ValidKey == nil {
		deps.ValidKey = func(key string) bool { return key != "" }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.IsSessionNotFound == nil {
		deps.IsSessionNotFound = func(error) bool { return false }
	}
	if deps.IsResultNotFound == nil {
		deps.IsResultNotFound = func(error) bool { return false }
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
}

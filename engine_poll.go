package goQR

import (
	"context"
	"errors"

	"github.com/MrEthical07/goQR/internal"
	internalflows "github.com/MrEthical07/goQR/internal/flows"
	"github.com/MrEthical07/goQR/internal/stores"
)

// Poll lets the generating client learn whether its session was accepted.
// A confirmed result is handed out once; later polls report whatever state
// the session itself is in. Only the owning principal may poll a principal-owned session.
func (e *Engine) Poll(ctx context.Context, route, sessionKey string, requester Identity) (*PollResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	out, err := internalflows.RunPoll(ctx, route, sessionKey, requester.toFlow(), e.pollFlowDeps())
	if err != nil {
		return nil, err
	}

	res := &PollResult{
		Status:  PollStatus(out.Status),
		Outcome: Outcome(out.Outcome),
		Subject: identityFromFlow(out.Subject),
	}
	if out.Login != nil {
		res.Login = LoginResult(out.Login)
	}
	return res, nil
}

func (e *Engine) pollFlowDeps() internalflows.PollDeps {
	deps := internalflows.PollDeps{
		ValidKey:      internal.ValidSessionKey,
		MapStoreError: mapQRStoreError,
		IsSessionNotFound: func(err error) bool {
			return errors.Is(err, stores.ErrQRSessionNotFound)
		},
		IsResultNotFound: func(err error) bool {
			return errors.Is(err, stores.ErrQRResultNotFound)
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.PollMetrics{
			PollPending:   int(MetricPollPending),
			PollConfirmed: int(MetricPollConfirmed),
		},
		Events: internalflows.PollEvents{
			Poll: auditEventPoll,
		},
		Errors: internalflows.PollErrors{
			EngineNotReady:  ErrEngineNotReady,
			SessionNotFound: ErrSessionNotFound,
			Forbidden:       ErrForbidden,
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
	deps.TakeResult = func(ctx context.Context, key string, accept func(internalflows.ResultRecord) bool) (internalflows.ResultRecord, bool, error) {
		var (
			decoded   internalflows.ResultRecord
			decodeErr error
		)
		_, taken, err := e.store.TakeResult(ctx, key, func(r *stores.QRResultRecord) bool {
			decoded, decodeErr = resultRecordFromStore(r)
			if decodeErr != nil {
				return false
			}
			return accept(decoded)
		})
		if err != nil {
			return internalflows.ResultRecord{}, false, err
		}
		if decodeErr != nil {
			return internalflows.ResultRecord{}, false, decodeErr
		}
		return decoded, taken, nil
	}

	return deps
}

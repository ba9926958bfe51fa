package goQR

import (
	"context"

	"github.com/MrEthical07/goQR/internal"
	internalflows "github.com/MrEthical07/goQR/internal/flows"
)

// Cancel withdraws a pending session, for example when the page showing
// the code is closed. Its cached image goes with it and a later confirm
// sees [ErrSessionNotFound]. The requester must be one that may poll the
// session; a result that was already recorded is left for Poll.
func (e *Engine) Cancel(ctx context.Context, route, sessionKey string, requester Identity) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	audit := internalflows.AuditRecord{
		EventType:  auditEventCancel,
		Route:      route,
		Confirmer:  requester.toFlow(),
		SessionKey: sessionKey,
	}
	finish := func(err error) error {
		audit.Err = err
		audit.Success = err == nil
		e.emitAudit(ctx, audit)
		return err
	}

	if !internal.ValidSessionKey(sessionKey) {
		return finish(ErrSessionNotFound)
	}

	stored, err := e.store.Get(ctx, sessionKey)
	if err != nil {
		return finish(mapQRStoreError(err))
	}
	record := sessionRecordFromStore(stored)
	if record.Route != route {
		return finish(ErrSessionNotFound)
	}

	audit.Owner = record.Owner
	if !internalflows.MayPoll(record.Owner, requester.toFlow()) {
		return finish(ErrForbidden)
	}

	return finish(mapQRStoreError(e.store.Delete(ctx, sessionKey)))
}

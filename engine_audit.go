package goQR

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goQR/internal/flows"
)

const (
	auditEventGenerate = "qr_generate"
	auditEventConfirm  = "qr_confirm"
	auditEventPoll     = "qr_poll"
	auditEventCancel   = "qr_cancel"
)

// AuditErrorCode is the stable, non-sensitive error label carried by audit events.
type AuditErrorCode string

const (
	auditErrRouteNotFound   AuditErrorCode = "route_not_found"
	auditErrSessionNotFound AuditErrorCode = "session_not_found"
	auditErrForbidden       AuditErrorCode = "forbidden"
	auditErrCallbackFailed  AuditErrorCode = "callback_failed"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrRenderFailed    AuditErrorCode = "render_failed"
	auditErrConfiguration   AuditErrorCode = "configuration"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(ctx context.Context, rec flows.AuditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  rec.EventType,
		Route:      rec.Route,
		SessionRef: rec.SessionKey,
		IP:         clientIPFromContext(ctx),
		Owner:      rec.Owner.String(),
		Success:    rec.Success,
	}
	if rec.EventType != auditEventGenerate {
		event.Confirmer = rec.Confirmer.String()
	}
	if rec.EventType == auditEventConfirm && outcomeEvaluated(rec.Err) {
		event.Outcome = rec.Outcome.String()
	}
	if code := auditErrorCode(rec.Err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// outcomeEvaluated reports whether a confirm got far enough to have an outcome.
func outcomeEvaluated(err error) bool {
	return err == nil ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrCallbackFailed)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRouteNotFound):
		return auditErrRouteNotFound
	case errors.Is(err, ErrCallbackFailed):
		return auditErrCallbackFailed
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrGenerateRateLimited),
		errors.Is(err, ErrConfirmRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrRenderFailed):
		return auditErrRenderFailed
	case errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrEngineNotReady):
		return auditErrConfiguration
	default:
		return auditErrInternal
	}
}

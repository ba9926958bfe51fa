package goQR

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goQR/internal"
	internalaudit "github.com/MrEthical07/goQR/internal/audit"
	"github.com/MrEthical07/goQR/internal/flows"
	"github.com/MrEthical07/goQR/internal/rate"
	"github.com/MrEthical07/goQR/internal/stores"
)

// Engine runs the QR handshake: it generates sessions, renders them and
// evaluates confirmations. It is immutable after [Builder.Build] and safe for
// concurrent use.
type Engine struct {
	config    Config
	store     *stores.QRSessionStore
	limiter   *rate.Limiter
	resolver  RouteResolver
	renderer  Renderer
	onLogin   LoginHandler
	onConfirm ConfirmHandler
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
}

// Close flushes and stops the audit dispatcher. The Redis client is owned by
// the caller and is not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// SessionTTL returns the configured lifetime of a pending session.
func (e *Engine) SessionTTL() time.Duration {
	if e == nil {
		return 0
	}
	return e.config.Session.TTL
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) logWarn(ctx context.Context, msg string, err error) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.WarnContext(ctx, msg, slog.Any("error", err))
}

func (e *Engine) newSessionKey() (string, error) {
	return internal.NewSessionKey(e.config.Session.KeyLength, e.config.Session.Salt)
}

func mapQRStoreError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, stores.ErrQRSessionNotFound), errors.Is(err, stores.ErrQRResultNotFound):
		return ErrSessionNotFound
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func mapGenerateLimiterError(err error) error {
	return mapLimiterError(err, ErrGenerateRateLimited)
}

func mapConfirmLimiterError(err error) error {
	return mapLimiterError(err, ErrConfirmRateLimited)
}

func mapLimiterError(err, limited error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, rate.ErrRateLimited):
		return limited
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func sessionRecordToStore(r flows.SessionRecord) *stores.QRSessionRecord {
	if r.Owner.IsAnonymous() {
		return &stores.QRSessionRecord{OwnerKind: stores.OwnerAnonymous, Route: r.Route}
	}
	return &stores.QRSessionRecord{OwnerKind: stores.OwnerPrincipal, OwnerID: r.Owner.ID, Route: r.Route}
}

func sessionRecordFromStore(r *stores.QRSessionRecord) flows.SessionRecord {
	if r == nil {
		return flows.SessionRecord{}
	}
	return flows.SessionRecord{
		Owner: ownerFromStore(r.OwnerKind, r.OwnerID),
		Route: r.Route,
	}
}

func ownerFromStore(kind uint8, id string) flows.Identity {
	if kind != stores.OwnerPrincipal || id == "" {
		return flows.Identity{}
	}
	return flows.Identity{ID: id, Authenticated: true}
}

func resultRecordToStore(r flows.ResultRecord) (*stores.QRResultRecord, error) {
	out := &stores.QRResultRecord{
		Outcome:   int(r.Outcome),
		OwnerKind: stores.OwnerAnonymous,
		SubjectID: r.Subject.ID,
		Route:     r.Route,
	}
	if !r.Owner.IsAnonymous() {
		out.OwnerKind = stores.OwnerPrincipal
		out.OwnerID = r.Owner.ID
	}
	if len(r.Login) > 0 {
		data, err := json.Marshal(r.Login)
		if err != nil {
			return nil, fmt.Errorf("encode login result: %w", err)
		}
		out.Data = data
	}
	return out, nil
}

func resultRecordFromStore(r *stores.QRResultRecord) (flows.ResultRecord, error) {
	if r == nil {
		return flows.ResultRecord{}, nil
	}
	out := flows.ResultRecord{
		Outcome: flows.Outcome(r.Outcome),
		Owner:   ownerFromStore(r.OwnerKind, r.OwnerID),
		Route:   r.Route,
	}
	if r.SubjectID != "" {
		out.Subject = flows.Identity{ID: r.SubjectID, Authenticated: true}
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &out.Login); err != nil {
			return flows.ResultRecord{}, fmt.Errorf("%w: %v", stores.ErrQRSessionCorrupt, err)
		}
	}
	return out, nil
}

package goQR

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/goQR/internal/audit"
	"github.com/MrEthical07/goQR/internal/flows"
	internalmetrics "github.com/MrEthical07/goQR/internal/metrics"
)

// Identity is either anonymous or a concrete principal. The zero value is
// anonymous.
type Identity struct {
	id            string
	authenticated bool
}

// Anonymous returns the identity of an unauthenticated actor.
func Anonymous() Identity {
	return Identity{}
}

// Principal returns the identity of an authenticated actor. An empty id is
// treated as anonymous.
func Principal(id string) Identity {
	if id == "" {
		return Identity{}
	}
	return Identity{id: id, authenticated: true}
}

func (i Identity) IsAnonymous() bool {
	return !i.authenticated || i.id == ""
}

// ID returns the principal id, or "" for an anonymous identity.
func (i Identity) ID() string {
	if i.IsAnonymous() {
		return ""
	}
	return i.id
}

// Equal reports whether both identities name the same principal. Anonymous
// identities are equal only to each other.
func (i Identity) Equal(other Identity) bool {
	if i.IsAnonymous() || other.IsAnonymous() {
		return i.IsAnonymous() && other.IsAnonymous()
	}
	return i.id == other.id
}

func (i Identity) String() string {
	if i.IsAnonymous() {
		return "anonymous"
	}
	return i.id
}

func (i Identity) toFlow() flows.Identity {
	return flows.Identity{ID: i.ID(), Authenticated: !i.IsAnonymous()}
}

func identityFromFlow(i flows.Identity) Identity {
	if i.IsAnonymous() {
		return Anonymous()
	}
	return Principal(i.ID)
}

// Outcome is the result of a confirmation attempt.
type Outcome int

const (
	// OutcomeNotFound means the session is absent, expired or bound to another route.
	OutcomeNotFound = Outcome(flows.OutcomeNotFound)
	// OutcomeForbidden means another principal owns the session.
	OutcomeForbidden = Outcome(flows.OutcomeForbidden)
	// OutcomeAcceptLogin means the handshake establishes a login for the subject.
	OutcomeAcceptLogin = Outcome(flows.OutcomeAcceptLogin)
	// OutcomeAcceptConfirmation means the handshake approves an action.
	OutcomeAcceptConfirmation = Outcome(flows.OutcomeAcceptConfirmation)
)

func (o Outcome) String() string {
	return flows.Outcome(o).String()
}

// Accepted reports whether o is one of the accept outcomes.
func (o Outcome) Accepted() bool {
	return flows.Outcome(o).Accepted()
}

// GenerateResult is returned by [Engine.Generate] and [Engine.GenerateImage].
type GenerateResult struct {
	SessionKey string
	URL        string
	ExpiresIn  time.Duration
	// Image is set by GenerateImage only.
	Image []byte
}

// LoginRequest is passed to the [LoginHandler]. Subject is always the
// concrete identity the login is issued for.
type LoginRequest struct {
	Owner      Identity
	Confirmer  Identity
	Subject    Identity
	Route      string
	SessionKey string
}

// LoginResult is whatever the application hands back to the confirming
// client, typically tokens. It must be JSON-encodable to reach a poller.
type LoginResult map[string]any

// ConfirmRequest is passed to the [ConfirmHandler].
type ConfirmRequest struct {
	Owner      Identity
	Confirmer  Identity
	Route      string
	SessionKey string
}

// LoginHandler establishes a login for an accepted session.
type LoginHandler func(ctx context.Context, req LoginRequest) (LoginResult, error)

// ConfirmHandler performs the approved action. Returning false fails the
// confirmation with [ErrCallbackFailed].
type ConfirmHandler func(ctx context.Context, req ConfirmRequest) bool

// ConfirmResult is returned by [Engine.Confirm]. On error Outcome still
// reports how far evaluation got.
type ConfirmResult struct {
	Outcome Outcome
	Owner   Identity
	Subject Identity
	Login   LoginResult
}

// PollStatus reports the state of a session to the client that generated it.
type PollStatus int

const (
	PollPending   = PollStatus(flows.PollPending)
	PollConfirmed = PollStatus(flows.PollConfirmed)
)

func (s PollStatus) String() string {
	switch s {
	case PollPending:
		return "pending"
	case PollConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// PollResult is returned by [Engine.Poll].
type PollResult struct {
	Status  PollStatus
	Outcome Outcome
	Subject Identity
	Login   LoginResult
}

// RouteResolver turns a route name and session key into the absolute
// confirmation URL encoded in the image.
type RouteResolver interface {
	ResolveConfirmationURL(ctx context.Context, route, sessionKey string) (string, error)
}

// Renderer turns the confirmation URL into image bytes.
type Renderer interface {
	Render(ctx context.Context, content string) ([]byte, error)
}

// RendererFunc adapts a function to [Renderer].
type RendererFunc func(ctx context.Context, content string) ([]byte, error)

func (f RendererFunc) Render(ctx context.Context, content string) ([]byte, error) {
	return f(ctx, content)
}

// RouteTable is the default [RouteResolver]. Routes maps a route name to a
// path under BaseURL. A "{code_hash}" placeholder in the path is replaced by
// the session key; otherwise the key is appended as the code_hash query
// parameter.
type RouteTable struct {
	BaseURL string
	Routes  map[string]string
}

func (t RouteTable) ResolveConfirmationURL(_ context.Context, route, sessionKey string) (string, error) {
	path, ok := t.Routes[route]
	if !ok || route == "" {
		return "", fmt.Errorf("%w: %q", ErrRouteNotFound, route)
	}

	base, err := url.Parse(t.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("%w: invalid base url %q", ErrConfiguration, t.BaseURL)
	}

	if strings.Contains(path, "{code_hash}") {
		path = strings.ReplaceAll(path, "{code_hash}", url.PathEscape(sessionKey))
		ref, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("%w: invalid path for route %q", ErrConfiguration, route)
		}
		return base.ResolveReference(ref).String(), nil
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("%w: invalid path for route %q", ErrConfiguration, route)
	}
	resolved := base.ResolveReference(ref)
	q := resolved.Query()
	q.Set("code_hash", sessionKey)
	resolved.RawQuery = q.Encode()
	return resolved.String(), nil
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON lines to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink is an [AuditSink] that logs each event through [slog].
type SlogSink = internalaudit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// MetricID identifies a counter or histogram in the in-process metrics.
type MetricID = internalmetrics.MetricID

const (
	MetricGenerateSuccess           = internalmetrics.MetricGenerateSuccess
	MetricGenerateFailure           = internalmetrics.MetricGenerateFailure
	MetricGenerateRateLimited       = internalmetrics.MetricGenerateRateLimited
	MetricRenderCacheHit            = internalmetrics.MetricRenderCacheHit
	MetricRenderCacheMiss           = internalmetrics.MetricRenderCacheMiss
	MetricRenderFailure             = internalmetrics.MetricRenderFailure
	MetricConfirmAcceptLogin        = internalmetrics.MetricConfirmAcceptLogin
	MetricConfirmAcceptConfirmation = internalmetrics.MetricConfirmAcceptConfirmation
	MetricConfirmNotFound           = internalmetrics.MetricConfirmNotFound
	MetricConfirmForbidden          = internalmetrics.MetricConfirmForbidden
	MetricConfirmCallbackFailed     = internalmetrics.MetricConfirmCallbackFailed
	MetricConfirmRateLimited        = internalmetrics.MetricConfirmRateLimited
	MetricPollPending               = internalmetrics.MetricPollPending
	MetricPollConfirmed             = internalmetrics.MetricPollConfirmed
	MetricGenerateLatency           = internalmetrics.MetricGenerateLatency
	MetricConfirmLatency            = internalmetrics.MetricConfirmLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] configured by cfg. When Enabled is false
// every operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}

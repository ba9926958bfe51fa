package qrhttp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	goQR "github.com/MrEthical07/goQR"
	"github.com/MrEthical07/goQR/middleware"
)

const (
	msgRouteNotFound = "Redirect url is not found."
	msgNotFound      = "QR code is not found."
	msgForbidden     = "QR code belongs to another user."
	msgRateLimited   = "Too many requests."
	msgUnavailable   = "Service unavailable."
	msgInternal      = "Internal server error."
)

// Service is the part of *goQR.Engine the handlers use.
type Service interface {
	GenerateImage(ctx context.Context, route string, requester goQR.Identity) (*goQR.GenerateResult, error)
	Confirm(ctx context.Context, route, sessionKey string, confirmer goQR.Identity) (*goQR.ConfirmResult, error)
	Poll(ctx context.Context, route, sessionKey string, requester goQR.Identity) (*goQR.PollResult, error)
}

// IdentityFunc extracts the caller identity from a request.
type IdentityFunc func(*http.Request) goQR.Identity

type Config struct {
	// Route is the route name sessions are generated for and confirmed on.
	Route    string
	Identity IdentityFunc
	Logger   *slog.Logger
}

type Handler struct {
	svc      Service
	route    string
	identity IdentityFunc
	logger   *slog.Logger
}

func New(svc Service, cfg Config) *Handler {
	h := &Handler{
		svc:      svc,
		route:    cfg.Route,
		identity: cfg.Identity,
		logger:   cfg.Logger,
	}
	if h.identity == nil {
		h.identity = func(r *http.Request) goQR.Identity {
			return middleware.IdentityFromContext(r.Context())
		}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Mount registers the three endpoints on mux under prefix, for example
// "/qr".
func (h *Handler) Mount(mux *http.ServeMux, prefix string) {
	prefix = strings.TrimRight(prefix, "/")
	mux.HandleFunc("GET "+prefix+"/generate", h.Generate)
	mux.HandleFunc("GET "+prefix+"/confirm", h.Confirm)
	mux.HandleFunc("GET "+prefix+"/status", h.Status)
}

type generateResponse struct {
	QR        string `json:"qr"`
	CodeHash  string `json:"code_hash"`
	ExpiresIn int64  `json:"expires_in"`
}

type confirmResponse struct {
	Status string           `json:"status"`
	Login  goQR.LoginResult `json:"login,omitempty"`
}

type statusResponse struct {
	Status  string           `json:"status"`
	Outcome string           `json:"outcome,omitempty"`
	Subject string           `json:"subject,omitempty"`
	Login   goQR.LoginResult `json:"login,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GenerateImage(r.Context(), h.route, h.identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		QR:        base64.StdEncoding.EncodeToString(res.Image),
		CodeHash:  res.SessionKey,
		ExpiresIn: int64(res.ExpiresIn.Seconds()),
	})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("code_hash")
	if key == "" {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: msgNotFound})
		return
	}

	res, err := h.svc.Confirm(r.Context(), h.route, key, h.identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body := confirmResponse{Status: "confirmed"}
	if res.Outcome == goQR.OutcomeAcceptLogin {
		body.Status = "logged_in"
		body.Login = res.Login
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("code_hash")
	if key == "" {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: msgNotFound})
		return
	}

	res, err := h.svc.Poll(r.Context(), h.route, key, h.identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if res.Status == goQR.PollPending {
		writeJSON(w, http.StatusAccepted, statusResponse{Status: res.Status.String()})
		return
	}

	body := statusResponse{
		Status:  res.Status.String(),
		Outcome: res.Outcome.String(),
		Login:   res.Login,
	}
	if !res.Subject.IsAnonymous() {
		body.Subject = res.Subject.ID()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "qr request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, messageResponse{Message: msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, goQR.ErrRouteNotFound):
		return http.StatusNotFound, msgRouteNotFound
	case errors.Is(err, goQR.ErrSessionNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, goQR.ErrForbidden):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, goQR.ErrGenerateRateLimited), errors.Is(err, goQR.ErrConfirmRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, goQR.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, msgUnavailable
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	goQR "github.com/MrEthical07/goQR"
	"github.com/MrEthical07/goQR/jwt"
	promexport "github.com/MrEthical07/goQR/metrics/export/prometheus"
	"github.com/MrEthical07/goQR/middleware"
	"github.com/MrEthical07/goQR/password"
	"github.com/MrEthical07/goQR/qrhttp"
	"github.com/redis/go-redis/v9"
)

type app struct {
	cfg    Config
	logger *slog.Logger
	engine *goQR.Engine
	tokens *jwt.Manager
	users  *userDirectory
}

func newApp(cfg Config, rdb redis.UniversalClient, logger *slog.Logger) (*app, error) {
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(cfg.JWT.Secret),
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("argon2: %w", err)
	}
	users, err := newUserDirectory(hasher, cfg.Users)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		tokens: tokens,
		users:  users,
	}

	qrCfg := goQR.DefaultConfig()
	qrCfg.Session.Salt = []byte(cfg.QR.Salt)
	qrCfg.Session.TTL = cfg.QR.TTL
	qrCfg.Session.KeyLength = cfg.QR.KeyLength
	qrCfg.Session.SingleUse = cfg.QR.SingleUse
	qrCfg.Session.RedisPrefix = cfg.Redis.Prefix
	qrCfg.Image.Size = cfg.QR.ImageSize
	qrCfg.Security.EnableGenerateThrottle = cfg.QR.Throttle
	qrCfg.Security.EnableConfirmThrottle = cfg.QR.Throttle
	qrCfg.Metrics.Enabled = cfg.QR.Metrics
	qrCfg.Metrics.EnableLatencyHistograms = cfg.QR.Metrics
	qrCfg.Audit.Enabled = cfg.QR.Audit

	for _, lint := range qrCfg.Lint() {
		logger.Warn("config lint", slog.String("code", lint.Code), slog.String("message", lint.Message))
	}

	a.engine, err = goQR.New().
		WithConfig(qrCfg).
		WithRedis(rdb).
		WithRoutes(cfg.QR.BaseURL, cfg.QR.Routes).
		WithLoginHandler(a.issueLogin).
		WithConfirmHandler(a.approve).
		WithAuditSink(goQR.NewSlogSink(logger.With(slog.String("component", "audit")))).
		WithLogger(logger.With(slog.String("component", "qr"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("qr engine: %w", err)
	}

	report := a.engine.SecurityReport()
	logger.Info("qr engine ready",
		slog.Duration("session_ttl", report.SessionTTL),
		slog.Bool("single_use", report.SingleUse),
		slog.Bool("generate_throttle", report.GenerateThrottleActive),
		slog.Bool("confirm_throttle", report.ConfirmThrottleActive),
		slog.Int("routes", len(cfg.QR.Routes)),
	)
	return a, nil
}

func (a *app) Close() {
	a.engine.Close()
}

// issueLogin hands the subject a device access token once a QR login is
// accepted. The qr_login token records which route produced it.
func (a *app) issueLogin(_ context.Context, req goQR.LoginRequest) (goQR.LoginResult, error) {
	access, err := a.tokens.CreateAccess(req.Subject.ID(), "qr:"+shortKey(req.SessionKey))
	if err != nil {
		return nil, err
	}
	grant, err := a.tokens.CreateQRLogin(req.Subject.ID(), req.Route)
	if err != nil {
		return nil, err
	}
	return goQR.LoginResult{
		"access_token": access,
		"login_token":  grant,
		"token_type":   "Bearer",
		"expires_in":   int64(a.cfg.JWT.AccessTTL.Seconds()),
	}, nil
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

func (a *app) approve(ctx context.Context, req goQR.ConfirmRequest) bool {
	a.logger.InfoContext(ctx, "qr action approved",
		slog.String("route", req.Route),
		slog.String("owner", req.Owner.String()),
		slog.String("confirmer", req.Confirmer.String()),
	)
	return true
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", a.login)
	mux.HandleFunc("GET /healthz", a.health)
	mux.Handle("GET /metrics", promexport.Handler(a.engine))

	qr := http.NewServeMux()
	routes := make([]string, 0, len(a.cfg.QR.Routes))
	for name := range a.cfg.QR.Routes {
		routes = append(routes, name)
	}
	sort.Strings(routes)
	for _, name := range routes {
		h := qrhttp.New(a.engine, qrhttp.Config{Route: name, Logger: a.logger})
		h.Mount(qr, "/qr/"+name)
		if name == a.cfg.QR.DefaultRoute {
			h.Mount(qr, "/qr")
		}
	}
	mux.Handle("/qr/", middleware.Identity(a.tokens)(qr))

	var h http.Handler = mux
	h = middleware.ClientIP(a.cfg.HTTP.TrustForwarded)(h)
	h = requestLog(a.logger)(h)
	h = requestID(h)
	return h
}

func (a *app) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		DeviceID string `json:"device_id"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed request body."})
		return
	}

	if err := a.users.Authenticate(body.Username, body.Password); err != nil {
		if !errors.Is(err, errBadCredentials) {
			a.logger.ErrorContext(r.Context(), "authenticate failed", slog.Any("error", err))
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid username or password."})
		return
	}

	token, err := a.tokens.CreateAccess(body.Username, body.DeviceID)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "issue access token", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error."})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int64(a.cfg.JWT.AccessTTL.Seconds()),
	})
}

func (a *app) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	h := a.engine.Health(ctx)
	if !h.RedisAvailable {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"redis_latency_ms": h.RedisLatency.Milliseconds(),
		"audit_drops":      h.AuditDropped,
		"device_users":     a.users.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

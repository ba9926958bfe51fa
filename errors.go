package goQR

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a setup problem: a missing collaborator, an
	// unknown route or a callback that cannot complete. It is a server
	// error, never a client one.
	ErrConfiguration = errors.New("qr configuration error")
	// ErrRouteNotFound is returned when the route cannot be resolved to a
	// confirmation URL.
	ErrRouteNotFound = fmt.Errorf("%w: redirect url is not found", ErrConfiguration)
	// ErrCallbackFailed is returned when the login handler errors or the
	// confirm handler declines an accepted session.
	ErrCallbackFailed = fmt.Errorf("%w: confirmation callback failed", ErrConfiguration)
	// ErrMissingSalt is returned by Validate when no salt is configured.
	ErrMissingSalt = fmt.Errorf("%w: session salt is required", ErrConfiguration)
	// ErrMissingHandler is returned by Build when a login or confirm handler is absent.
	ErrMissingHandler = fmt.Errorf("%w: login and confirm handlers are required", ErrConfiguration)

	ErrStoreUnavailable = errors.New("qr session store unavailable")
	ErrSessionNotFound  = errors.New("qr session not found")
	ErrForbidden        = errors.New("qr session belongs to another principal")
	ErrRenderFailed     = errors.New("qr image render failed")

	ErrGenerateRateLimited = errors.New("qr generate rate limited")
	ErrConfirmRateLimited  = errors.New("qr confirm rate limited")

	// ErrEngineNotReady is returned by methods on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Package middleware turns HTTP requests into the identities and client
// addresses a goQR.Engine works with.
//
// # Middleware
//
//   - [Identity] resolves an optional bearer token. No token means an
//     anonymous caller; a token that fails verification is rejected.
//   - [RequireIdentity] rejects callers without a valid token.
//   - [ClientIP] attaches the caller's address for throttling and audit.
//
// Handlers read the result with [IdentityFromContext] and
// [ClaimsFromContext].
//
// This package verifies tokens through [TokenParser] only. It never talks
// to Redis and makes no decision about a QR session.
package middleware

// Package goQR implements a QR-code login and approval handshake backed by
// Redis.
//
// A client asks the [Engine] to generate a session for a named route. The
// session key is embedded in a confirmation URL and rendered as a QR image.
// A second device scans it and confirms; the engine then decides, from who
// generated the session and who confirmed it, whether the handshake logs
// somebody in, approves an action, or is rejected. The generating client
// learns the outcome by polling.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goQR is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([Identity], [GenerateResult], [ConfirmResult], [PollResult]).
// Flow orchestration, record encoding, rate limiting and audit dispatch live
// under internal/ and are never exported. HTTP handlers live in qrhttp.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Distinguish an expired session from one that never existed.
//
// # Performance contract
//
// Confirm on a reusable session costs one Redis read plus one result write.
// Generate costs one SETNX when the generate throttle is off.
package goQR

// Package stores provides the Redis-backed, short-lived records behind a QR
// handshake: the pending session, its rendered image and the confirmation
// result picked up by the generating client.
//
// # Design
//
// The session record is versioned and binary-encoded; the result record is
// JSON because it carries opaque login data. Every record lives under a TTL
// and carries no timestamp of its own, so an expired record is
// indistinguishable from one that never existed.
//
// Check-and-delete operations (Consume, TakeResult) use WATCH/MULTI
// optimistic transactions with bounded retry on contention. A caller that
// loses the race observes the record as absent.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control. It does NOT generate
// keys, decide outcomes or enforce rate limits; those belong to internal and
// internal/flows.
//
// # What this package must NOT do
//
//   - Import goQR or any sibling internal package.
//   - Map a backend failure to "not found".
package stores

// Package rate throttles QR traffic per client IP with fixed-window Redis
// counters (INCR, then EXPIRE on the first hit).
//
// Two budgets exist, both under the engine's Redis prefix:
//   - <prefix>:rg:<ip> counts generated codes
//   - <prefix>:rc:<ip> counts confirms that ended in not-found or forbidden
//
// Requests without an IP are never throttled.
package rate

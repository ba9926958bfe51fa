// Package internal holds the session key helpers shared by the goQR engine.
//
// Sub-packages:
//   - stores: Redis-backed session, image and result records
//   - flows: generate, confirm, render and poll orchestration
//   - rate: fixed-window throttles for generation and failed confirms
//   - audit: buffered audit dispatch
//   - metrics: lock-free counters and latency histograms
//
// Nothing here is part of the public API.
package internal

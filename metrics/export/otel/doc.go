// Package otel binds goQR engine metrics to an OpenTelemetry Meter.
//
// Counters are grouped per handshake step: goqr_confirm_total carries an
// "outcome" attribute (accept_login, accept_confirmation, not_found,
// forbidden, callback_failed, rate_limited), goqr_generate_total and
// goqr_render_total a "result" attribute and goqr_poll_total a "status"
// attribute. Latency histograms are exported as a cumulative
// *_bucket gauge keyed by "le" plus a *_count counter.
//
// A single callback reads [goQR.Engine.MetricsSnapshot] on each collection.
// The caller owns the MeterProvider.
package otel

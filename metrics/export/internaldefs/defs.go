package internaldefs

import (
	goQR "github.com/MrEthical07/goQR"
)

type CounterDef struct {
	ID   goQR.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goQR.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const (
	AuditDroppedName = "goqr_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: goQR.MetricGenerateSuccess, Name: "goqr_generate_success_total", Help: "Sessions generated."},
	{ID: goQR.MetricGenerateFailure, Name: "goqr_generate_failure_total", Help: "Failed session generations."},
	{ID: goQR.MetricGenerateRateLimited, Name: "goqr_generate_rate_limited_total", Help: "Rate-limited generate requests."},
	{ID: goQR.MetricRenderCacheHit, Name: "goqr_render_cache_hit_total", Help: "QR images served from the cache."},
	{ID: goQR.MetricRenderCacheMiss, Name: "goqr_render_cache_miss_total", Help: "QR images rendered on demand."},
	{ID: goQR.MetricRenderFailure, Name: "goqr_render_failure_total", Help: "Failed QR image renders."},
	{ID: goQR.MetricConfirmAcceptLogin, Name: "goqr_confirm_accept_login_total", Help: "Confirmations that established a login."},
	{ID: goQR.MetricConfirmAcceptConfirmation, Name: "goqr_confirm_accept_confirmation_total", Help: "Confirmations that approved an action."},
	{ID: goQR.MetricConfirmNotFound, Name: "goqr_confirm_not_found_total", Help: "Confirmations for unknown, expired or mismatched sessions."},
	{ID: goQR.MetricConfirmForbidden, Name: "goqr_confirm_forbidden_total", Help: "Confirmations rejected because another principal owns the session."},
	{ID: goQR.MetricConfirmCallbackFailed, Name: "goqr_confirm_callback_failed_total", Help: "Accepted confirmations whose callback failed."},
	{ID: goQR.MetricConfirmRateLimited, Name: "goqr_confirm_rate_limited_total", Help: "Rate-limited confirm requests."},
	{ID: goQR.MetricPollPending, Name: "goqr_poll_pending_total", Help: "Polls answered with pending."},
	{ID: goQR.MetricPollConfirmed, Name: "goqr_poll_confirmed_total", Help: "Polls that picked up a result."},
}

var HistogramDefs = []HistogramDef{
	{ID: goQR.MetricGenerateLatency, Name: "goqr_generate_latency_seconds", Help: "Generate latency histogram."},
	{ID: goQR.MetricConfirmLatency, Name: "goqr_confirm_latency_seconds", Help: "Confirm latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates raw to the engine bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

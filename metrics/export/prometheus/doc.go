// Package prometheus exposes goQR engine metrics to Prometheus.
//
// [Collector] implements prometheus.Collector over
// [goQR.Engine.MetricsSnapshot]: counters become goqr_*_total series and the
// latency slots become goqr_*_latency_seconds histograms. [Handler] wraps a
// private registry in promhttp so nothing is registered globally.
package prometheus

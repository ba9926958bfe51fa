// Package metrics counts what happens to QR sessions: codes generated,
// images served from cache, confirm outcomes, polls. It also keeps optional
// generate and confirm latency histograms.
//
// Every slot is a padded uint64 bumped with sync/atomic, so the confirm hot
// path never takes a lock or allocates. Histograms have eight buckets, from
// 5ms up to +Inf. A disabled Metrics turns every call into a no-op.
//
// Exporters in metrics/export read [Snapshot] values; this package does no
// I/O and knows nothing about Prometheus or OTel.
package metrics

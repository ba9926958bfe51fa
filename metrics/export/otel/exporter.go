package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goQR "github.com/MrEthical07/goQR"
	"github.com/MrEthical07/goQR/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

const (
	AttrResult  = attribute.Key("result")
	AttrOutcome = attribute.Key("outcome")
	AttrStatus  = attribute.Key("status")
	AttrLE      = attribute.Key("le")
)

type metricsSource interface {
	MetricsSnapshot() goQR.MetricsSnapshot
	AuditDropped() uint64
}

// series is one engine counter slot reported as an attribute value of a
// shared instrument.
type series struct {
	id    goQR.MetricID
	value string
}

// family groups the counters of one handshake step under one instrument.
type family struct {
	name   string
	help   string
	key    attribute.Key
	series []series
}

var families = []family{
	{
		name: "goqr_generate_total",
		help: "Generate requests by result.",
		key:  AttrResult,
		series: []series{
			{goQR.MetricGenerateSuccess, "success"},
			{goQR.MetricGenerateFailure, "failure"},
			{goQR.MetricGenerateRateLimited, "rate_limited"},
		},
	},
	{
		name: "goqr_render_total",
		help: "QR image requests by result.",
		key:  AttrResult,
		series: []series{
			{goQR.MetricRenderCacheHit, "cache_hit"},
			{goQR.MetricRenderCacheMiss, "cache_miss"},
			{goQR.MetricRenderFailure, "failure"},
		},
	},
	{
		name: "goqr_confirm_total",
		help: "Confirm requests by outcome.",
		key:  AttrOutcome,
		series: []series{
			{goQR.MetricConfirmAcceptLogin, "accept_login"},
			{goQR.MetricConfirmAcceptConfirmation, "accept_confirmation"},
			{goQR.MetricConfirmNotFound, "not_found"},
			{goQR.MetricConfirmForbidden, "forbidden"},
			{goQR.MetricConfirmCallbackFailed, "callback_failed"},
			{goQR.MetricConfirmRateLimited, "rate_limited"},
		},
	},
	{
		name: "goqr_poll_total",
		help: "Result polls by status.",
		key:  AttrStatus,
		series: []series{
			{goQR.MetricPollPending, "pending"},
			{goQR.MetricPollConfirmed, "confirmed"},
		},
	},
}

type observedSeries struct {
	id    goQR.MetricID
	attrs metric.ObserveOption
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	series     []observedSeries
}

type observedLatency struct {
	id      goQR.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableCounter
	le      [8]metric.ObserveOption
}

// OTelExporter reports engine metrics through asynchronous instruments.
// Counters of one step share an instrument keyed by an outcome attribute.
// Latency buckets are one cumulative gauge keyed by "le".
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	families     []observedFamily
	latencies    []observedLatency
	auditDropped metric.Int64ObservableCounter
}

func NewOTelExporter(meter metric.Meter, engine *goQR.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{source: source}
	observables := make([]metric.Observable, 0, len(families)+len(internaldefs.HistogramDefs)*2+1)

	for _, f := range families {
		ins, err := meter.Int64ObservableCounter(f.name, metric.WithDescription(f.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", f.name, err)
		}
		of := observedFamily{instrument: ins, series: make([]observedSeries, 0, len(f.series))}
		for _, s := range f.series {
			of.series = append(of.series, observedSeries{
				id:    s.id,
				attrs: metric.WithAttributeSet(attribute.NewSet(f.key.String(s.value))),
			})
		}
		exporter.families = append(exporter.families, of)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		l := observedLatency{id: def.ID}

		bucketName := def.Name + "_bucket"
		buckets, err := meter.Int64ObservableGauge(bucketName,
			metric.WithDescription(def.Help+" Cumulative count per upper bound."),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			return nil, fmt.Errorf("create latency bucket gauge %s: %w", bucketName, err)
		}
		l.buckets = buckets

		countName := def.Name + "_count"
		count, err := meter.Int64ObservableCounter(countName, metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("create latency count %s: %w", countName, err)
		}
		l.count = count

		for i := range l.le {
			l.le[i] = metric.WithAttributeSet(attribute.NewSet(AttrLE.String(upperBound(i))))
		}
		exporter.latencies = append(exporter.latencies, l)
		observables = append(observables, buckets, count)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, f := range e.families {
		for _, s := range f.series {
			observer.ObserveInt64(f.instrument, int64(snapshot.Counters[s.id]), s.attrs)
		}
	}

	for _, l := range e.latencies {
		raw, ok := snapshot.Histograms[l.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i := range cumulative {
			observer.ObserveInt64(l.buckets, int64(cumulative[i]), l.le[i])
		}
		observer.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}

	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// upperBound renders bucket i the way Prometheus labels "le".
func upperBound(i int) string {
	if i >= len(internaldefs.HistogramUpperBounds) {
		return "+Inf"
	}
	return strconv.FormatFloat(internaldefs.HistogramUpperBounds[i], 'g', -1, 64)
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goQR "github.com/MrEthical07/goQR"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type fakeSource struct {
	snapshot goQR.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goQR.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                  { return f.dropped }

func gather(t *testing.T, src fakeSource) map[string]*dto.MetricFamily {
	t.Helper()

	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollectorFromSource(src)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestCollectDisabledMetricsOnlyExportsAuditDropped(t *testing.T) {
	families := gather(t, fakeSource{
		snapshot: goQR.MetricsSnapshot{
			Counters:   map[goQR.MetricID]uint64{},
			Histograms: map[goQR.MetricID][]uint64{},
		},
	})

	if len(families) != 1 {
		t.Fatalf("expected only the audit counter, got %d families", len(families))
	}
	if _, ok := families["goqr_audit_dropped_total"]; !ok {
		t.Fatal("expected goqr_audit_dropped_total")
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	families := gather(t, fakeSource{
		snapshot: goQR.MetricsSnapshot{
			Counters: map[goQR.MetricID]uint64{
				goQR.MetricConfirmAcceptLogin: 7,
			},
			Histograms: map[goQR.MetricID][]uint64{
				goQR.MetricConfirmLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	login := families["goqr_confirm_accept_login_total"]
	if login == nil || login.GetMetric()[0].GetCounter().GetValue() != 7 {
		t.Fatalf("expected accept_login counter 7, got %v", login)
	}

	latency := families["goqr_confirm_latency_seconds"]
	if latency == nil {
		t.Fatal("expected confirm latency histogram")
	}
	h := latency.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 36 {
		t.Fatalf("expected 36 samples, got %d", h.GetSampleCount())
	}
	first := h.GetBucket()[0]
	if first.GetUpperBound() != 0.005 || first.GetCumulativeCount() != 1 {
		t.Fatalf("unexpected first bucket %v", first)
	}

	if got := families["goqr_audit_dropped_total"].GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 dropped events, got %v", got)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	h := HandlerFromSource(fakeSource{
		snapshot: goQR.MetricsSnapshot{
			Counters:   map[goQR.MetricID]uint64{goQR.MetricGenerateSuccess: 1},
			Histograms: map[goQR.MetricID][]uint64{},
		},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "goqr_generate_success_total 1") {
		t.Fatalf("expected generate counter in output, got:\n%s", body)
	}
}

func BenchmarkCollect(b *testing.B) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollectorFromSource(fakeSource{
		snapshot: goQR.MetricsSnapshot{
			Counters: map[goQR.MetricID]uint64{
				goQR.MetricGenerateSuccess:    1000,
				goQR.MetricConfirmAcceptLogin: 800,
				goQR.MetricConfirmNotFound:    40,
			},
			Histograms: map[goQR.MetricID][]uint64{
				goQR.MetricGenerateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	}))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = reg.Gather()
	}
}

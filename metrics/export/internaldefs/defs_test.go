package internaldefs

import (
	"strings"
	"testing"

	goQR "github.com/MrEthical07/goQR"
)

func TestEveryCounterIsDefinedOnce(t *testing.T) {
	seen := map[goQR.MetricID]bool{}
	names := map[string]bool{}
	for _, def := range CounterDefs {
		if seen[def.ID] || names[def.Name] {
			t.Fatalf("duplicate definition %q", def.Name)
		}
		if !strings.HasPrefix(def.Name, "goqr_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %q", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}

	for id := goQR.MetricID(0); id < goQR.MetricGenerateLatency; id++ {
		if !seen[id] {
			t.Fatalf("metric id %d has no counter definition", id)
		}
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(HistogramUpperBounds)+1 != len(got) {
		t.Fatal("finite bounds plus +Inf must cover every bucket")
	}
}

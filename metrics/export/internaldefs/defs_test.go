package internaldefs

import (
	"strings"
	"testing"

	clinicAuth "github.com/MrEthical07/clinicAuth"
)

func TestDefsCoverEveryMetric(t *testing.T) {
	seen := make(map[clinicAuth.MetricID]bool)
	names := make(map[string]bool)
	for _, def := range CounterDefs {
		seen[def.ID] = true
		if names[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		names[def.Name] = true
		if !strings.HasPrefix(def.Name, "clinicauth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %s", def.Name)
		}
	}
	for _, def := range HistogramDefs {
		seen[def.ID] = true
	}

	snap := clinicAuth.NewMetrics(clinicAuth.MetricsConfig{Enabled: true}).Snapshot()
	for id := range snap.Counters {
		if !seen[id] {
			t.Fatalf("metric %d has no export definition", id)
		}
	}
	if !seen[clinicAuth.MetricRequestLatency] {
		t.Fatal("request latency histogram has no export definition")
	}
}

func TestBucketTablesAgree(t *testing.T) {
	if len(HistogramBounds) != 8 || len(HistogramUpperBounds) != 8 || len(HistogramBoundSuffix) != 8 {
		t.Fatal("bucket tables must each have 8 entries")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledNoIncrement(t *testing.T) {
	m := New(Config{Enabled: false})
	m.Inc(MetricVerifySuccess)

	if got := m.Value(MetricVerifySuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %d counters", len(snap.Counters))
	}
}

func TestConcurrentIncrementSafe(t *testing.T) {
	m := New(Config{Enabled: true})

	const goroutines = 16
	const perG = 2000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricCodeDispatched)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricCodeDispatched); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatencyHistograms: true})

	for _, d := range []time.Duration{
		10 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		5 * time.Second,
		30 * time.Second,
	} {
		m.Observe(MetricRequestLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricRequestLatency]
	if len(buckets) != HistBucketCount {
		t.Fatalf("expected %d buckets, got %d", HistBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, v)
		}
	}
}

func TestObserveIgnoresCounters(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricVerifySuccess, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricVerifySuccess]; ok {
		t.Fatal("counter id must not produce a histogram")
	}
	if _, ok := snap.Counters[MetricRequestLatency]; ok {
		t.Fatal("histogram id must not appear among counters")
	}
}

func TestLatencyDisabledSkipsHistogram(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Observe(MetricRequestLatency, time.Millisecond)

	if len(m.Snapshot().Histograms) != 0 {
		t.Fatal("expected no histograms when latency is disabled")
	}
}

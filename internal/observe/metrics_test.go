package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumByStatus returns the value of the data point whose status attribute
// matches, or -1.
func sumByStatus(t *testing.T, rm metricdata.ResourceMetrics, name, status string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "status" && kv.Value.AsString() == status {
				return dp.Value
			}
		}
	}
	return -1
}

func TestRecordPass(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPass(ctx, "censored", 2, 3*time.Second)
	m.RecordPass(ctx, "censored", 1, time.Second)
	m.RecordPass(ctx, "clean", 0, time.Second)

	rm := collect(t, reader)

	if got := sumByStatus(t, rm, "countercurse.passes", "censored"); got != 2 {
		t.Errorf("censored passes = %d, want 2", got)
	}
	if got := sumByStatus(t, rm, "countercurse.passes", "clean"); got != 1 {
		t.Errorf("clean passes = %d, want 1", got)
	}

	met := findMetric(rm, "countercurse.intervals")
	if met == nil {
		t.Fatal("intervals metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Errorf("intervals = %+v, want a single point of 3", sum.DataPoints)
	}

	met = findMetric(rm, "countercurse.pass.duration")
	if met == nil {
		t.Fatal("pass duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("pass duration is not a histogram")
	}
	if got := hist.DataPoints[0].Count; got != 3 {
		t.Errorf("sample count = %d, want 3", got)
	}
	if got := hist.DataPoints[0].Sum; got != 5 {
		t.Errorf("sample sum = %v, want 5", got)
	}
}

func TestRecordTranscription(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordTranscription(context.Background(), 1500*time.Millisecond)

	met := findMetric(collect(t, reader), "countercurse.transcribe.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if hist.DataPoints[0].Count != 1 || hist.DataPoints[0].Sum != 1.5 {
		t.Errorf("unexpected data point: %+v", hist.DataPoints[0])
	}
}

func TestJobLifecycle(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.JobStarted(ctx)
	m.JobStarted(ctx)
	m.JobFinished(ctx, "SUCCEEDED")

	rm := collect(t, reader)

	met := findMetric(rm, "countercurse.jobs.active")
	if met == nil {
		t.Fatal("active jobs metric not found")
	}
	active := met.Data.(metricdata.Sum[int64])
	if active.DataPoints[0].Value != 1 {
		t.Errorf("active jobs = %d, want 1", active.DataPoints[0].Value)
	}
	if got := sumByStatus(t, rm, "countercurse.jobs", "SUCCEEDED"); got != 1 {
		t.Errorf("succeeded jobs = %d, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordPass(ctx, "clean", 0, time.Second)
	m.RecordTranscription(ctx, time.Second)
	m.JobStarted(ctx)
	m.JobFinished(ctx, "FAILED")
}

func TestDefaultMetrics(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a == nil || a != b {
		t.Fatal("DefaultMetrics should return the same non-nil instance")
	}
}

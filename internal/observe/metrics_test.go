package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
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

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
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

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestDiffDurationObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.DiffDuration.Record(ctx, 0.004)
	m.DiffDuration.Record(ctx, 0.012)

	rm := collect(t, reader)
	found := findMetric(rm, "scriptbench.diff.duration")
	if found == nil {
		t.Fatal("scriptbench.diff.duration not found after recording")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("diff duration data type = %T, want Histogram[float64]", found.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Errorf("histogram datapoints = %+v, want one point with count 2", hist.DataPoints)
	}
}

func TestFragmentLoadCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FragmentLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "fetched")))
	m.FragmentLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "hit")))
	m.FragmentLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "hit")))

	rm := collect(t, reader)
	found := findMetric(rm, "scriptbench.fragment.loads")
	if found == nil {
		t.Fatal("scriptbench.fragment.loads not found after recording")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("fragment loads data type = %T, want Sum[int64]", found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("fragment loads total = %d, want 3", total)
	}
}

func TestDefaultMetrics_SameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different instances")
	}
}

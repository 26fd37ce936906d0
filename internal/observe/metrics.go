// Package observe provides observability primitives for scriptbench:
// OpenTelemetry metrics, tracing, structured logging helpers, and HTTP
// middleware tying them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// scraping via the Prometheus exporter bridge set up by [InitProvider].
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all scriptbench metrics.
const meterName = "github.com/hallgrim/scriptbench"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// PartitionDuration tracks the wall time of one full partition run.
	PartitionDuration metric.Float64Histogram

	// DiffDuration tracks the time spent normalizing and segmenting one
	// (reference, hypothesis) pair.
	DiffDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// FragmentLoads counts fragment cache lookups. Use with attribute:
	//   attribute.String("outcome", "hit"|"fetched"|"error")
	FragmentLoads metric.Int64Counter

	// SearchQueries counts fuzzy sample searches. Use with attribute:
	//   attribute.Bool("matched", ...)
	SearchQueries metric.Int64Counter

	// PartitionRuns counts partition invocations. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	PartitionRuns metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries in seconds. Diff and
// HTTP latencies sit in the low milliseconds; partition runs may take whole
// seconds on large datasets.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PartitionDuration, err = m.Float64Histogram("scriptbench.partition.duration",
		metric.WithDescription("Wall time of one partition run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiffDuration, err = m.Float64Histogram("scriptbench.diff.duration",
		metric.WithDescription("Time to normalize and segment one comparison pair."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("scriptbench.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.FragmentLoads, err = m.Int64Counter("scriptbench.fragment.loads",
		metric.WithDescription("Fragment cache lookups by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SearchQueries, err = m.Int64Counter("scriptbench.search.queries",
		metric.WithDescription("Fuzzy sample searches by match outcome."),
	); err != nil {
		return nil, err
	}
	if met.PartitionRuns, err = m.Int64Counter("scriptbench.partition.runs",
		metric.WithDescription("Partition invocations by status."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Package observe provides the OpenTelemetry metric instruments recorded by
// the censoring pipeline and the Prometheus bridge that exposes them.
//
// Tests should build their own [Metrics] with [NewMetrics] and a
// [sdkmetric.ManualReader]-backed provider to avoid cross-test pollution.
// A nil *Metrics is valid and records nothing.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/countercurse/countercurse"

// Metrics holds all metric instruments for the application.
type Metrics struct {
	// Passes counts finished censoring passes. Attribute: status.
	Passes metric.Int64Counter

	// Intervals counts spliced intervals across all passes.
	Intervals metric.Int64Counter

	// PassDuration tracks wall time of a single pass.
	PassDuration metric.Float64Histogram

	// TranscribeDuration tracks transcription latency.
	TranscribeDuration metric.Float64Histogram

	// Jobs counts runs that reached a terminal status. Attribute: status.
	Jobs metric.Int64Counter

	// ActiveJobs tracks runs currently in progress.
	ActiveJobs metric.Int64UpDownCounter
}

// durationBuckets covers everything from a short clip to a feature-length
// transcription, in seconds.
var durationBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Passes, err = m.Int64Counter("countercurse.passes",
		metric.WithDescription("Censoring passes by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Intervals, err = m.Int64Counter("countercurse.intervals",
		metric.WithDescription("Offending intervals replaced with the mask."),
	); err != nil {
		return nil, err
	}
	if met.PassDuration, err = m.Float64Histogram("countercurse.pass.duration",
		metric.WithDescription("Duration of one extract, transcribe, splice and remux pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("countercurse.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Jobs, err = m.Int64Counter("countercurse.jobs",
		metric.WithDescription("Censoring runs by terminal status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveJobs, err = m.Int64UpDownCounter("countercurse.jobs.active",
		metric.WithDescription("Censoring runs in progress."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordPass records one finished pass with its outcome, the number of
// intervals it censored and its wall time.
func (m *Metrics) RecordPass(ctx context.Context, status string, intervals int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Passes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if intervals > 0 {
		m.Intervals.Add(ctx, int64(intervals))
	}
	m.PassDuration.Record(ctx, elapsed.Seconds())
}

// RecordTranscription records how long a transcription call took.
func (m *Metrics) RecordTranscription(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TranscribeDuration.Record(ctx, elapsed.Seconds())
}

// JobStarted marks a run as active.
func (m *Metrics) JobStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveJobs.Add(ctx, 1)
}

// JobFinished marks a run as no longer active and counts its terminal status.
func (m *Metrics) JobFinished(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.ActiveJobs.Add(ctx, -1)
	m.Jobs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

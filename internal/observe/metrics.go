// Package observe provides application-wide observability primitives for
// Sonara: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Sonara metrics.
const meterName = "github.com/sonara-health/sonara"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks end-to-end transcription latency for a
	// whole recording, across all segments and retries.
	TranscriptionDuration metric.Float64Histogram

	// SegmentDuration tracks per-segment STT latency.
	SegmentDuration metric.Float64Histogram

	// InsightDuration tracks insight extraction latency. Use with attribute:
	//   attribute.String("insight", "sentiment"|"word_cloud"|"speaking_time"|"summary")
	InsightDuration metric.Float64Histogram

	// EmbeddingDuration tracks transcript embedding latency.
	EmbeddingDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// InsightFallbacks counts insight extractions that degraded to their
	// fallback value. Use with attribute: attribute.String("insight", ...)
	InsightFallbacks metric.Int64Counter

	// SessionsSaved counts committed sessions. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	SessionsSaved metric.Int64Counter

	// --- Gauges ---

	// ActiveCaptures tracks the number of open live-capture WebSocket
	// connections.
	ActiveCaptures metric.Int64UpDownCounter

	// PendingSaves tracks sessions retained in memory after a failed save.
	PendingSaves metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The
// upper buckets are generous because transcribing a full-length session
// takes minutes, not milliseconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("sonara.transcription.duration",
		metric.WithDescription("End-to-end transcription latency per recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentDuration, err = m.Float64Histogram("sonara.segment.duration",
		metric.WithDescription("Per-segment speech-to-text latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InsightDuration, err = m.Float64Histogram("sonara.insight.duration",
		metric.WithDescription("Insight extraction latency by insight kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbeddingDuration, err = m.Float64Histogram("sonara.embedding.duration",
		metric.WithDescription("Transcript embedding latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("sonara.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("sonara.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.InsightFallbacks, err = m.Int64Counter("sonara.insight.fallbacks",
		metric.WithDescription("Total insight extractions that degraded to their fallback value."),
	); err != nil {
		return nil, err
	}
	if met.SessionsSaved, err = m.Int64Counter("sonara.sessions.saved",
		metric.WithDescription("Total committed sessions by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCaptures, err = m.Int64UpDownCounter("sonara.active_captures",
		metric.WithDescription("Number of open live-capture WebSocket connections."),
	); err != nil {
		return nil, err
	}
	if met.PendingSaves, err = m.Int64UpDownCounter("sonara.pending_saves",
		metric.WithDescription("Sessions retained in memory after a failed save."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sonara.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordInsightFallback records that an insight degraded to its fallback.
func (m *Metrics) RecordInsightFallback(ctx context.Context, insight string) {
	m.InsightFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("insight", insight)),
	)
}

// RecordSessionSaved records a session commit attempt outcome.
func (m *Metrics) RecordSessionSaved(ctx context.Context, status string) {
	m.SessionsSaved.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// Package observe provides application-wide observability primitives for
// Acuvox: OpenTelemetry metrics, tracing setup, and structured logging glue.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all Acuvox metrics.
const meterName = "github.com/acuvox/acuvox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ListenDuration tracks the length of one speech-to-text listening window.
	ListenDuration metric.Float64Histogram

	// MatchDuration tracks matching latency. Use with attribute:
	//   attribute.String("strategy", ...)
	MatchDuration metric.Float64Histogram

	// EmbedDuration tracks embedding provider latency. Use with attribute:
	//   attribute.String("provider", ...)
	EmbedDuration metric.Float64Histogram

	// --- Counters ---

	// Attempts counts scored confirmation attempts. Use with attributes:
	//   attribute.String("item_id", ...), attribute.String("decision", ...)
	Attempts metric.Int64Counter

	// Validations counts finished confirmation loops. Use with attributes:
	//   attribute.String("item_id", ...), attribute.String("status", ...)
	Validations metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live confirmation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ListenDuration, err = m.Float64Histogram("acuvox.listen.duration",
		metric.WithDescription("Length of one speech-to-text listening window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchDuration, err = m.Float64Histogram("acuvox.match.duration",
		metric.WithDescription("Latency of utterance matching by strategy."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbedDuration, err = m.Float64Histogram("acuvox.embed.duration",
		metric.WithDescription("Latency of embedding inference by provider."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Attempts, err = m.Int64Counter("acuvox.confirm.attempts",
		metric.WithDescription("Total scored confirmation attempts by item and decision."),
	); err != nil {
		return nil, err
	}
	if met.Validations, err = m.Int64Counter("acuvox.confirm.validations",
		metric.WithDescription("Total finished confirmation loops by item and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("acuvox.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("acuvox.active_sessions",
		metric.WithDescription("Number of live confirmation sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("acuvox.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordAttempt records one scored confirmation attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, itemID, decision string) {
	m.Attempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("item_id", itemID),
			attribute.String("decision", decision),
		),
	)
}

// RecordValidation records one finished confirmation loop.
func (m *Metrics) RecordValidation(ctx context.Context, itemID, status string) {
	m.Validations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("item_id", itemID),
			attribute.String("status", status),
		),
	)
}

// RecordMatchDuration records matching latency for one strategy.
func (m *Metrics) RecordMatchDuration(ctx context.Context, strategy string, seconds float64) {
	m.MatchDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("strategy", strategy)),
	)
}

// RecordEmbedDuration records embedding inference latency for one provider.
func (m *Metrics) RecordEmbedDuration(ctx context.Context, provider string, seconds float64) {
	m.EmbedDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("provider", provider)),
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

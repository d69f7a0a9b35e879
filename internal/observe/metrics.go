// Package observe holds the studio's OpenTelemetry metric instruments and
// the provider setup that exposes them to Prometheus.
//
// Components receive a *Metrics explicitly. Tests build one with
// NewMetrics over a ManualReader; code that does not care uses Discard.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/hammamikhairi/voicestudio"

// Metrics holds every instrument the studio records. The underlying OTel
// types are safe for concurrent use.
type Metrics struct {
	// SynthesisDuration tracks provider synthesis latency (cache misses only).
	SynthesisDuration metric.Float64Histogram

	// RefineDuration tracks script refinement latency.
	RefineDuration metric.Float64Histogram

	// ProviderRequests counts provider calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// SynthesisCache counts cache lookups. Attribute: result (hit|miss).
	SynthesisCache metric.Int64Counter

	// DecodeFailures counts synthesized payloads that could not be decoded.
	DecodeFailures metric.Int64Counter

	// PlaybackStarts counts sources started on the live graph.
	PlaybackStarts metric.Int64Counter

	// CaptureSessions counts finished captures. Attribute: outcome.
	CaptureSessions metric.Int64Counter

	// CaptureSeconds tracks the length of finished captures.
	CaptureSeconds metric.Float64Histogram

	// Exports counts rendered WAV exports.
	Exports metric.Int64Counter
}

var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32,
}

var captureBuckets = []float64{
	1, 2, 5, 10, 15, 20, 25, 30,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("voicestudio.synthesis.duration",
		metric.WithDescription("Latency of speech synthesis requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RefineDuration, err = m.Float64Histogram("voicestudio.refine.duration",
		metric.WithDescription("Latency of script refinement requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("voicestudio.provider.requests",
		metric.WithDescription("Provider requests by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisCache, err = m.Int64Counter("voicestudio.synthesis.cache",
		metric.WithDescription("Synthesis cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.DecodeFailures, err = m.Int64Counter("voicestudio.decode.failures",
		metric.WithDescription("Synthesized payloads that failed to decode."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackStarts, err = m.Int64Counter("voicestudio.playback.starts",
		metric.WithDescription("Sources started on the live graph."),
	); err != nil {
		return nil, err
	}
	if met.CaptureSessions, err = m.Int64Counter("voicestudio.capture.sessions",
		metric.WithDescription("Finished capture sessions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.CaptureSeconds, err = m.Float64Histogram("voicestudio.capture.length",
		metric.WithDescription("Length of finished captures."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(captureBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Exports, err = m.Int64Counter("voicestudio.exports",
		metric.WithDescription("Rendered WAV exports."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Discard returns instruments that record nothing.
func Discard() *Metrics {
	met, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return met
}

// RecordProviderRequest counts one provider call and, for timed kinds,
// records its latency.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))

	attrs := metric.WithAttributes(attribute.String("status", status))
	switch kind {
	case "synthesis":
		m.SynthesisDuration.Record(ctx, elapsed.Seconds(), attrs)
	case "refine":
		m.RefineDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// RecordCacheLookup counts a synthesis cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SynthesisCache.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordCapture counts a finished capture and its length in seconds.
func (m *Metrics) RecordCapture(ctx context.Context, outcome string, seconds int) {
	m.CaptureSessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.CaptureSeconds.Record(ctx, float64(seconds))
}

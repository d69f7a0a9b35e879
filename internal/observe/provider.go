package observe

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const serviceName = "voicestudio"

// Exporter owns the studio's meter provider, its instruments and the
// private Prometheus registry they are scraped from.
type Exporter struct {
	Metrics *Metrics

	registry *prometheus.Registry
	mp       *sdkmetric.MeterProvider
}

type exporterConfig struct {
	version string
	runtime bool
	global  bool
}

// ExporterOption configures NewExporter.
type ExporterOption func(*exporterConfig)

// WithServiceVersion tags every series with the build version.
func WithServiceVersion(v string) ExporterOption {
	return func(c *exporterConfig) { c.version = v }
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() ExporterOption {
	return func(c *exporterConfig) { c.runtime = true }
}

// WithGlobalProvider also installs the meter provider as the otel global.
func WithGlobalProvider() ExporterOption {
	return func(c *exporterConfig) { c.global = true }
}

// NewExporter builds the instruments over an otel meter provider whose only
// reader is a Prometheus exporter bound to a fresh registry.
func NewExporter(opts ...ExporterOption) (*Exporter, error) {
	cfg := exporterConfig{version: "dev"}
	for _, o := range opts {
		o(&cfg)
	}

	reg := prometheus.NewRegistry()
	if cfg.runtime {
		if err := reg.Register(collectors.NewGoCollector()); err != nil {
			return nil, fmt.Errorf("observe: go collector: %w", err)
		}
		if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, fmt.Errorf("observe: process collector: %w", err)
		}
	}

	reader, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(cfg.version),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	if cfg.global {
		otel.SetMeterProvider(mp)
	}

	met, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, err
	}
	return &Exporter{Metrics: met, registry: reg, mp: mp}, nil
}

// Handler serves the registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Shutdown flushes and stops the meter provider.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.mp.Shutdown(ctx)
}

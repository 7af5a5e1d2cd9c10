// Package observability sets up OpenTelemetry tracing and metrics for model
// calls, pipeline stages and the HTTP API.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"recruitflow/internal/errors"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer and meter providers of the process. A nil or
// disabled Manager records nothing.
type Manager struct {
	settings       Settings
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	shutdownFuncs  []func(context.Context) error
	prometheusMux  *http.ServeMux
	logger         *errors.Logger
}

// NewManager sets up tracing and metrics according to settings.
func NewManager(settings Settings, logger *errors.Logger) (*Manager, error) {
	return newManager(settings, logger)
}

// newManager accepts extra metric readers, used by tests to collect metrics.
func newManager(settings Settings, logger *errors.Logger, extraReaders ...sdkmetric.Reader) (*Manager, error) {
	m := &Manager{settings: settings, logger: logger}
	if !settings.Enabled {
		return m, nil
	}

	res, err := m.resource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if err := m.initTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := m.initMetrics(res, extraReaders); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return m, nil
}

func (m *Manager) resource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(m.settings.ServiceName),
			semconv.ServiceVersion(m.settings.ServiceVersion),
			semconv.ServiceInstanceID(m.settings.ServiceInstance),
		),
	)
}

func (m *Manager) initTracing(res *resource.Resource) error {
	var (
		exporter trace.SpanExporter
		err      error
	)
	switch {
	case m.settings.ConsoleOutput:
		opts := []stdouttrace.Option{}
		if m.settings.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case m.settings.OTLP.Enabled:
		exporter, err = m.otlpTraceExporter()
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	opts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(m.settings.SampleRate)),
	}
	if exporter != nil {
		opts = append(opts, trace.WithBatcher(exporter))
	}
	tp := trace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	m.tracerProvider = tp
	m.shutdownFuncs = append(m.shutdownFuncs, tp.Shutdown)
	return nil
}

func (m *Manager) initMetrics(res *resource.Resource, extraReaders []sdkmetric.Reader) error {
	readers, err := m.metricReaders()
	if err != nil {
		return err
	}
	readers = append(readers, extraReaders...)
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	mp := sdkmetric.NewMeterProvider(opts...)

	otel.SetMeterProvider(mp)
	m.meterProvider = mp
	m.shutdownFuncs = append(m.shutdownFuncs, mp.Shutdown)

	metrics, err := newMetrics(mp.Meter(m.settings.ServiceName))
	if err != nil {
		return err
	}
	m.metrics = metrics
	return nil
}

func (m *Manager) metricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if m.settings.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(m.settings.Interval)))
	}

	if m.settings.OTLP.Enabled {
		reader, err := m.otlpMetricsReader()
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, reader)
	}

	if m.settings.Prometheus.Enabled {
		reader, mux, err := SetupPrometheusExporter(m.settings.Prometheus)
		if err != nil {
			return nil, err
		}
		readers = append(readers, reader)
		m.prometheusMux = mux
	}
	return readers, nil
}

func (m *Manager) otlpTraceExporter() (trace.SpanExporter, error) {
	otlp := m.settings.OTLP
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(otlp.Endpoint)}
	if otlp.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlp.Headers))
	}
	return otlptracehttp.New(context.Background(), opts...)
}

func (m *Manager) otlpMetricsReader() (sdkmetric.Reader, error) {
	otlp := m.settings.OTLP
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(otlp.Endpoint)}
	if otlp.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlp.Headers))
	}
	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(m.settings.Interval)), nil
}

// Enabled reports whether telemetry is recorded.
func (m *Manager) Enabled() bool {
	return m != nil && m.settings.Enabled
}

// PrometheusHandler returns the scrape mux, or nil when Prometheus is disabled.
func (m *Manager) PrometheusHandler() *http.ServeMux {
	if m == nil {
		return nil
	}
	return m.prometheusMux
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (m *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !m.Enabled() {
		return func(h http.Handler) http.Handler { return h }
	}
	return otelhttp.NewMiddleware(
		m.settings.ServiceName,
		otelhttp.WithTracerProvider(m.tracerProvider),
		otelhttp.WithMeterProvider(m.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (m *Manager) Tracer(name string) oteltrace.Tracer {
	if !m.Enabled() || m.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// Shutdown flushes and stops every provider.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	for _, shutdown := range m.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

func successAttrs(name, value string, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(name, value),
		attribute.Bool("success", success),
	}
}

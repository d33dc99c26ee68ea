package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry handles all observability concerns: tracing and metrics
type Telemetry struct {
	TracerProvider     *sdktrace.TracerProvider
	MeterProvider      *sdkmetric.MeterProvider
	PrometheusExporter *prometheus.Exporter
	Tracer             trace.Tracer
	Meter              metric.Meter
	config             *TelemetryConfig
	logger             *zap.Logger
}

// TelemetryMetrics contains the instruments recorded by handlers and services
type TelemetryMetrics struct {
	HTTPRequestDuration    metric.Float64Histogram
	HTTPRequestCount       metric.Int64Counter
	PathsGenerated         metric.Int64Counter
	PathGenerationDuration metric.Float64Histogram
	PathSize               metric.Int64Histogram
	ProblemsSolved         metric.Int64Counter
	ToolCalls              metric.Int64Counter
}

// NewTelemetry initializes OpenTelemetry with tracing and metrics
func NewTelemetry(ctx context.Context, config *TelemetryConfig, environment string, logger *zap.Logger) (*Telemetry, error) {
	if !config.Enabled {
		logger.Info("Telemetry disabled, using noop providers")
		return &Telemetry{
			Tracer: otel.Tracer(config.ServiceName),
			Meter:  otel.Meter(config.ServiceName),
			config: config,
			logger: logger,
		}, nil
	}

	// Create resource with service information
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Initialize trace exporter
	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(config.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Batch spans and sample a tenth of root traces
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(0.1),
		)),
	)

	// Initialize Prometheus exporter for metrics
	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)

	// Set global providers
	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)

	logger.Info("Telemetry initialized",
		zap.String("service", config.ServiceName),
		zap.String("version", config.ServiceVersion),
		zap.String("otlp_endpoint", config.OTLPEndpoint),
	)

	return &Telemetry{
		TracerProvider:     tracerProvider,
		MeterProvider:      meterProvider,
		PrometheusExporter: promExporter,
		Tracer:             tracerProvider.Tracer(config.ServiceName),
		Meter:              meterProvider.Meter(config.ServiceName),
		config:             config,
		logger:             logger,
	}, nil
}

// CreateMetrics initializes all application metrics
func (t *Telemetry) CreateMetrics() (*TelemetryMetrics, error) {
	httpDuration, err := t.Meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpCount, err := t.Meter.Int64Counter(
		"http.request.count",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	pathsGenerated, err := t.Meter.Int64Counter(
		"paths.generated",
		metric.WithDescription("Number of practice paths generated, by mode"),
	)
	if err != nil {
		return nil, err
	}

	generationDuration, err := t.Meter.Float64Histogram(
		"paths.generation.duration",
		metric.WithDescription("Time spent selecting and ordering a path in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	pathSize, err := t.Meter.Int64Histogram(
		"paths.size",
		metric.WithDescription("Number of problems in generated paths"),
	)
	if err != nil {
		return nil, err
	}

	problemsSolved, err := t.Meter.Int64Counter(
		"problems.solved",
		metric.WithDescription("Total number of path problems marked solved"),
	)
	if err != nil {
		return nil, err
	}

	toolCalls, err := t.Meter.Int64Counter(
		"tools.calls",
		metric.WithDescription("Tool invocations by name and outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &TelemetryMetrics{
		HTTPRequestDuration:    httpDuration,
		HTTPRequestCount:       httpCount,
		PathsGenerated:         pathsGenerated,
		PathGenerationDuration: generationDuration,
		PathSize:               pathSize,
		ProblemsSolved:         problemsSolved,
		ToolCalls:              toolCalls,
	}, nil
}

// HTTPRequest records the duration and count of one served request
func (m *TelemetryMetrics) HTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.HTTPRequestCount.Add(ctx, 1, attrs)
}

// PathGenerated records one generated path
func (m *TelemetryMetrics) PathGenerated(ctx context.Context, mode string, size int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.PathsGenerated.Add(ctx, 1, attrs)
	m.PathGenerationDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.PathSize.Record(ctx, int64(size), attrs)
}

// ProblemSolved records a problem solved inside a path
func (m *TelemetryMetrics) ProblemSolved(ctx context.Context) {
	m.ProblemsSolved.Add(ctx, 1)
}

// ToolCalled records a tool invocation
func (m *TelemetryMetrics) ToolCalled(ctx context.Context, name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", name),
		attribute.String("outcome", outcome),
	))
}

// Shutdown gracefully shuts down telemetry providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			t.logger.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			t.logger.Error("Failed to shutdown meter provider", zap.Error(err))
		}
	}
	t.logger.Info("Telemetry shutdown complete")
	return nil
}


package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// InitTracing installs the global tracer provider and propagator. With the
// "none" exporter spans are still created (so trace ids reach the logs) but
// never exported.
func InitTracing(ctx context.Context, cfg config.TelemetryConfig, serviceName, environment string, logg *logger.Logger) (ShutdownFunc, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "marketprep"
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName),
		attribute.String("deployment.environment", strings.TrimSpace(environment)),
	))
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "otel resource init failed (continuing)")
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	}
	exporter, err := buildExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logg.Info(logg.WithFields(ctx, map[string]any{
		"exporter": exporterName(cfg),
		"service":  serviceName,
	}), "otel tracing initialized")
	return tp.Shutdown, nil
}

func buildExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch exporterName(cfg) {
	case ExporterNone:
		return nil, nil
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown otel exporter %q", cfg.Exporter)
	}
}

func exporterName(cfg config.TelemetryConfig) string {
	name := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if name == "" {
		return ExporterNone
	}
	return name
}

func clampRatio(r float64) float64 {
	return max(0, min(r, 1))
}

// Package observability builds the service's logger and OpenTelemetry providers.
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "shop-inventory"
	ServiceVersion = "1.0.0"

	logsPath      = "/otlp/v1/logs"
	tracesPath    = "/otlp/v1/traces"
	exportTimeout = 30 * time.Second
	maxQueueSize  = 2048
)

// Telemetry says where OTLP data goes. An empty Endpoint disables export.
type Telemetry struct {
	Endpoint   string
	AuthHeader string
}

func (t Telemetry) Enabled() bool { return t.Endpoint != "" }

func (t Telemetry) headers() map[string]string {
	if t.AuthHeader == "" {
		return nil
	}
	return map[string]string{"Authorization": t.AuthHeader}
}

func newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
}

func noopShutdown(context.Context) error { return nil }

// SetupLoggingSDK installs a global OTLP logger provider. It does nothing when export is disabled.
func SetupLoggingSDK(ctx context.Context, t Telemetry) (shutdown func(context.Context) error, err error) {
	if !t.Enabled() {
		return noopShutdown, nil
	}
	res, err := newResource()
	if err != nil {
		return noopShutdown, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(t.Endpoint),
		otlploghttp.WithURLPath(logsPath),
		otlploghttp.WithHeaders(t.headers()),
	)
	if err != nil {
		return noopShutdown, fmt.Errorf("OTLP log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter,
			sdklog.WithExportTimeout(exportTimeout),
			sdklog.WithMaxQueueSize(maxQueueSize),
		)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(provider)
	return provider.Shutdown, nil
}

// SetupTracingSDK installs a global tracer provider and the trace context propagator. When export
// is disabled the returned provider is the current global one.
func SetupTracingSDK(ctx context.Context, t Telemetry) (tp trace.TracerProvider, shutdown func(context.Context) error, err error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !t.Enabled() {
		return otel.GetTracerProvider(), noopShutdown, nil
	}

	res, err := newResource()
	if err != nil {
		return otel.GetTracerProvider(), noopShutdown, fmt.Errorf("failed to create resource: %w", err)
	}
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(t.Endpoint),
		otlptracehttp.WithURLPath(tracesPath),
		otlptracehttp.WithHeaders(t.headers()),
	)
	if err != nil {
		return otel.GetTracerProvider(), noopShutdown, fmt.Errorf("OTLP trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithExportTimeout(exportTimeout),
			sdktrace.WithMaxQueueSize(maxQueueSize),
		)),
	)
	otel.SetTracerProvider(provider)
	return provider, provider.Shutdown, nil
}

// JoinShutdown runs every shutdown function and joins their errors.
func JoinShutdown(fns ...func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range fns {
			if fn != nil {
				err = errors.Join(err, fn(ctx))
			}
		}
		return err
	}
}

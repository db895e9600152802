// Package traces provides OpenTelemetry tracing for Convert API calls.
package traces

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/campaigntrip/convertapi"

// Init initializes the OpenTelemetry tracer provider.
// If otlpEndpoint is empty, the global no-op provider stays in place.
// Returns a shutdown function that flushes pending spans.
func Init(ctx context.Context, otlpEndpoint, version string, logger *slog.Logger) (func(context.Context) error, error) {
	if otlpEndpoint == "" {
		logger.Debug("tracing disabled (no OTEL_EXPORTER_OTLP_ENDPOINT set)")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("convertapi"),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled", "endpoint", otlpEndpoint)
	return tp.Shutdown, nil
}

// StartSpan starts a new span with the given name and returns the updated context and span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// End finishes span, marking it failed when err is non-nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Common attribute helpers for consistent span decoration.

func AccountID(id string) attribute.KeyValue {
	return attribute.String("convert.account_id", id)
}

func ProjectID(id string) attribute.KeyValue {
	return attribute.String("convert.project_id", id)
}

func ExperienceID(id string) attribute.KeyValue {
	return attribute.String("convert.experience_id", id)
}

func Method(method string) attribute.KeyValue {
	return attribute.String("http.request.method", method)
}

func StatusCode(code int) attribute.KeyValue {
	return attribute.Int("http.response.status_code", code)
}

func Attempt(n int) attribute.KeyValue {
	return attribute.Int("retry.attempt", n)
}

// Package telemetry wires OpenTelemetry tracing for estimation sessions.
//
// Spans are always created through StartSpan. Until Init installs an
// exporter the global provider is a no-op, so library code can trace
// unconditionally.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/scan/internal/ir"
)

const tracerName = "scan"

// Exporters accepted by Init.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Shutdown flushes pending spans and releases the exporter.
type Shutdown func(context.Context) error

// Init installs the global tracer provider for exporter. "none" (or "")
// installs a no-op provider; "stdout" writes finished spans as JSON to w.
func Init(exporter string, w io.Writer) (Shutdown, error) {
	switch strings.ToLower(strings.TrimSpace(exporter)) {
	case "", ExporterNone:
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil

	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				semconv.ServiceNameKey.String(tracerName),
				semconv.ServiceVersionKey.String(ir.EngineVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("build resource: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil

	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q (want none or stdout)", exporter)
	}
}

// StartSpan starts a span on the global provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Package telemetry wires OpenTelemetry tracing/metrics and the Prometheus
// counters used across the engine.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for all engine spans.
const tracerName = "github.com/warden-hq/warden"

var (
	initOnce sync.Once
	initErr  error
	shutdown func(context.Context) error
)

// Init installs global trace and meter providers exporting to the given
// writer destination: "stdout", "file://<path>", or "off" (no-op providers).
// Safe to call multiple times; the first successful initialisation wins.
func Init(serviceName, serviceVersion, output string) error {
	initOnce.Do(func() {
		if output == "off" || output == "" {
			shutdown = func(context.Context) error { return nil }
			return
		}

		var w io.Writer = os.Stdout
		if len(output) > 7 && output[:7] == "file://" {
			f, err := os.OpenFile(output[7:], os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
			if err != nil {
				initErr = fmt.Errorf("open telemetry output: %w", err)
				return
			}
			w = f
		}

		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("service.version", serviceVersion),
			),
		)
		if err != nil {
			initErr = err
			return
		}

		traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			initErr = err
			return
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)

		metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			initErr = err
			return
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(time.Minute))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)

		shutdown = func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				return err
			}
			return mp.Shutdown(ctx)
		}
	})
	return initErr
}

// Shutdown flushes and stops the installed providers.
func Shutdown(ctx context.Context) error {
	if shutdown == nil {
		return nil
	}
	return shutdown(ctx)
}

// StartSpan starts an internal span under the engine's tracer.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

// EndSpan records the error (if any) on the span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// String is a convenience wrapper for string span attributes.
func String(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

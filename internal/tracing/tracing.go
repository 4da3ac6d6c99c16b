// Package tracing installs the OpenTelemetry tracer provider used by the API
// client. Spans are written by the stdout exporter to a file.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown flushes and stops the provider.
type Shutdown func(ctx context.Context) error

func noop(context.Context) error { return nil }

var (
	providerOnce sync.Once
	providerErr  error
	shutdown     Shutdown = noop
)

// Init writes spans to outputFile. An empty outputFile leaves the global
// no-op provider in place. Only the first call has an effect.
func Init(serviceName, serviceVersion, outputFile string) (Shutdown, error) {
	if outputFile == "" {
		return noop, nil
	}

	providerOnce.Do(func() {
		f, err := os.Create(outputFile)
		if err != nil {
			providerErr = fmt.Errorf("create trace file: %w", err)
			return
		}
		exporter, err := newExporter(f)
		if err != nil {
			_ = f.Close()
			providerErr = err
			return
		}
		tp, err := newProvider(serviceName, serviceVersion, exporter)
		if err != nil {
			_ = f.Close()
			providerErr = err
			return
		}
		otel.SetTracerProvider(tp)
		shutdown = func(ctx context.Context) error {
			err := tp.Shutdown(ctx)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			return err
		}
	})
	return shutdown, providerErr
}

func newExporter(w io.Writer) (sdktrace.SpanExporter, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}
	return exporter, nil
}

func newProvider(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	), nil
}

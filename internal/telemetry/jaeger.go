package telemetry

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

/*
LEARNING: JAEGER INTEGRATION

  Server → OpenTelemetry SDK → Jaeger Exporter → Jaeger Collector → Jaeger UI

Spans come from the HTTP middleware (one root span per request), from the
room hub (one span per websocket message and per document write) and from
export rendering.
*/

// Shutdown flushes pending spans
type Shutdown func(context.Context) error

// InitJaeger installs a global tracer provider exporting to endpoint.
// An empty endpoint leaves the no-op provider in place.
func InitJaeger(serviceName, version, endpoint string) (Shutdown, error) {
	if endpoint == "" {
		log.Println("  Tracing disabled (no JAEGER_ENDPOINT)")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Learning: ParentBased keeps sampling decisions consistent when a
	// caller already started the trace
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)

	log.Printf("✓ Jaeger tracing initialized: %s", endpoint)

	return tp.Shutdown, nil
}

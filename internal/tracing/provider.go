// Package tracing sets up the OpenTelemetry provider exporting over
// OTLP/gRPC and the span helper the message path uses to stamp spans
// with the session and room they concern.
package tracing

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ridgelinegames/corehost/internal/logging"
)

// tracerName identifies this process's spans in the trace backend.
const tracerName = "corehost"

// InitTracer dials the collector, installs the global provider and W3C
// propagators, and returns the provider for shutdown. The connection
// is plaintext unless OTEL_TLS=true, since the common deployment is a
// sidecar or in-cluster collector; OTEL_INSECURE_SKIP_VERIFY=true
// relaxes certificate checks for development against a self-signed
// collector.
func InitTracer(ctx context.Context, serviceName string, collectorAddr string) (*sdktrace.TracerProvider, error) {
	creds := insecure.NewCredentials()
	if os.Getenv("OTEL_TLS") == "true" {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if os.Getenv("OTEL_INSECURE_SKIP_VERIFY") == "true" {
			tlsConfig.InsecureSkipVerify = true
		}
		creds = credentials.NewTLS(tlsConfig)
	}

	conn, err := grpc.NewClient(collectorAddr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dial collector: %w", err)
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
			attribute.String("deployment.environment", os.Getenv("GO_ENV")),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// StartSpan opens a span named for a message-handling step and stamps
// it with whatever session id and room code ride the context (the same
// values the logging helpers read), so traces and logs join on the
// same keys.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	if sid, ok := ctx.Value(logging.SessionIDKey).(string); ok && sid != "" {
		span.SetAttributes(attribute.String("session.id", sid))
	}
	if code, ok := ctx.Value(logging.RoomCodeKey).(string); ok && code != "" {
		span.SetAttributes(attribute.String("room.code", code))
	}
	return ctx, span
}

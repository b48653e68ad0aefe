// Package tracing provides OpenTelemetry spans for store queries and
// session steps.
//
// Spans are no-ops until Init is called with tracing enabled. Finished spans
// are exported as JSON to the configured writer (stderr by default).
package tracing

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName     = "ric"
	instrumentation = "github.com/khanglvm/ric"
	shutdownTimeout = 5 * time.Second
)

// Config controls span export.
type Config struct {
	Enabled        bool
	ServiceVersion string

	// Writer receives exported spans; defaults to os.Stderr.
	Writer io.Writer
}

// Init installs a global tracer provider. The returned function flushes and
// stops it; it is safe to call when tracing is disabled.
func Init(cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// Tracer returns the ric tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

// StoreSpan starts a client span for a graph store query.
func StoreSpan(ctx context.Context, backend, op string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", backend),
			attribute.String("db.operation", op),
		),
	)
}

// StepSpan starts a span for one session step.
func StepSpan(ctx context.Context, tool string, step int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "session.step",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("ric.tool", tool),
			attribute.Int("ric.step", step),
		),
	)
}

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs an in-memory provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	prev := otel.GetTracerProvider()
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Init(Config{Enabled: true, ServiceVersion: "test", Writer: &buf})
	require.NoError(t, err)

	_, span := StoreSpan(context.Background(), "sqlite", "confidence_scores")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	require.Contains(t, buf.String(), "store.confidence_scores")
	require.Contains(t, buf.String(), "sqlite")
}

func TestSpansCarryAttributes(t *testing.T) {
	rec := recordSpans(t)

	ctx, step := StepSpan(context.Background(), "FastQC", 1)
	_, query := StoreSpan(ctx, "neo4j", "confidence_scores")
	RecordError(query, errors.New("connection refused"))
	RecordError(query, nil)
	query.End()
	step.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)

	q := spans[0]
	require.Equal(t, "store.confidence_scores", q.Name())
	require.Equal(t, codes.Error, q.Status().Code)
	require.Equal(t, spans[1].SpanContext().SpanID(), q.Parent().SpanID())

	s := spans[1]
	require.Equal(t, "session.step", s.Name())
	require.Contains(t, s.Attributes(), attribute.String("ric.tool", "FastQC"))
}


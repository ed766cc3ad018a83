package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	return exp
}

func TestStartSpanAndCorrelationID(t *testing.T) {
	setupTracer(t)

	ctx, span := StartSpan(context.Background(), "transcribe recording")
	cid := CorrelationID(ctx)
	span.End()

	if cid == "" {
		t.Fatal("no correlation ID inside span")
	}
	if len(cid) != 32 {
		t.Errorf("correlation ID length = %d, want 32", len(cid))
	}
}

func TestCorrelationIDEmptyWithoutSpan(t *testing.T) {
	if cid := CorrelationID(context.Background()); cid != "" {
		t.Errorf("correlation ID = %q, want empty", cid)
	}
}

func TestLoggerWithoutSpanIsDefault(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil")
	}
}

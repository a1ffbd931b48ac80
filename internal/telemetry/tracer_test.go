package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestInitTracerExportsSpans(t *testing.T) {
	var buf bytes.Buffer

	shutdown, err := InitTracer("ai-screener-test", &buf, zap.NewNop())
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "place-call")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}
	if !strings.Contains(buf.String(), "place-call") || !strings.Contains(buf.String(), "ai-screener-test") {
		t.Fatalf("expected exported span, got %s", buf.String())
	}
}

package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  twilio  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "provider" || fields[0].String != "twilio" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}
}

func TestForResponse(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	ForResponse(zap.New(core), "sess-1", 2).Info("recording ready")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldSession] != "sess-1" {
		t.Fatalf("expected session field sess-1, got %v", ctx[FieldSession])
	}
	if ctx[FieldQuestion] != int64(2) {
		t.Fatalf("expected question field 2, got %v", ctx[FieldQuestion])
	}
}

func TestWithProvider(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithProvider(zap.New(core), "gemini", "").Info("call")

	ctx := observed.All()[0].ContextMap()
	if ctx[FieldProvider] != "gemini" {
		t.Fatalf("expected provider field gemini, got %v", ctx[FieldProvider])
	}
	if _, ok := ctx[FieldModel]; ok {
		t.Fatalf("expected empty model to be skipped")
	}

	// nil logger falls back to a no-op logger
	WithProvider(nil, "gemini", "m").Info("no panic")
}

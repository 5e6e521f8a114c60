package observability

import (
	"context"
	"testing"
)

func TestDisabledTracingIsNoop(t *testing.T) {
	tp, err := InitTracing(context.Background(), Config{ServiceName: "pawnbroker"})
	if err != nil {
		t.Fatal(err)
	}
	if tp.Enabled() {
		t.Fatal("tracing should be disabled")
	}
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	if span.SpanContext().IsValid() {
		t.Fatal("noop tracer produced a recording span")
	}
	span.End()
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestEnabledTracingNeedsEndpoint(t *testing.T) {
	if _, err := InitTracing(context.Background(), Config{Enabled: true}); err == nil {
		t.Fatal("expected error without endpoint")
	}
}

func TestGenAIAttributes(t *testing.T) {
	attrs := GenAIAttributes("openai", "gpt-4o-mini", 400)
	if len(attrs) != 4 || attrs[2].Value.AsString() != "gpt-4o-mini" {
		t.Fatalf("attrs = %v", attrs)
	}
}

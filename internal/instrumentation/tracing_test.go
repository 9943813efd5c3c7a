package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrsOf(kvs []attribute.KeyValue) map[string]interface{} {
	out := make(map[string]interface{}, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestStartCommandSpan(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartCommandSpan(context.Background(), "meetc", 42, true)
	if GetTraceID(ctx) == "" || GetSpanID(ctx) == "" {
		t.Error("expected trace and span ids in context")
	}
	SetSpanSuccess(span)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "command.meetc" {
		t.Errorf("span name = %q, want command.meetc", spans[0].Name())
	}
	attrs := attrsOf(spans[0].Attributes())
	if attrs[SpanAttrCommand] != "meetc" {
		t.Errorf("command attr = %v", attrs[SpanAttrCommand])
	}
	if attrs[SpanAttrChatID] != int64(42) {
		t.Errorf("chat id attr = %v", attrs[SpanAttrChatID])
	}
	if attrs[SpanAttrRestricted] != true {
		t.Errorf("restricted attr = %v", attrs[SpanAttrRestricted])
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", spans[0].Status().Code)
	}
}

func TestStartGoogleAPISpan_Error(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartGoogleAPISpan(context.Background(), ServiceMeet, OperationCreate,
		attribute.String("extra", "value"))
	SetSpanError(span, errors.New("permission denied"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "google.meet.create" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	attrs := attrsOf(spans[0].Attributes())
	if attrs[SpanAttrService] != ServiceMeet || attrs[SpanAttrOperation] != OperationCreate || attrs["extra"] != "value" {
		t.Errorf("unexpected attributes %v", attrs)
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}

func TestSetSpanError_Nil(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartGoogleAPISpan(context.Background(), ServiceMeet, OperationCreate)
	SetSpanError(span, nil)
	span.End()

	if code := recorder.Ended()[0].Status().Code; code != codes.Unset {
		t.Errorf("status = %v, want Unset", code)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if GetTraceID(context.Background()) != "" {
		t.Error("expected empty trace id")
	}
	if GetSpanID(context.Background()) != "" {
		t.Error("expected empty span id")
	}
}

// Package telemetry provides OpenTelemetry integration for distributed tracing.
// This file holds the span helpers used by the dispatch, reconcile and
// outbound client paths.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer every load engine span is started from
const TracerName = "load-engine"

// Attribute keys shared by load engine spans
const (
	SpanAttrLedgerID      = "ledger_id"
	SpanAttrProvider      = "provider"
	SpanAttrProviderTxnID = "provider_txn_id"
	SpanAttrSKU           = "sku"
	SpanAttrStatus        = "status"
	SpanAttrSource        = "source"
	SpanAttrReference     = "reference_code"
	SpanAttrAttempt       = "attempt"
	SpanAttrPeer          = "peer.service"
	SpanAttrHTTPStatus    = "http.status_code"
)

// SpanOption adjusts how a span is started
type SpanOption func(*spanOptions)

type spanOptions struct {
	attrs []attribute.KeyValue
	kind  trace.SpanKind
}

// WithAttribute sets an attribute when the span starts
func WithAttribute(key string, value any) SpanOption {
	return func(o *spanOptions) {
		o.attrs = append(o.attrs, toAttribute(key, value))
	}
}

// WithSpanKind overrides the default internal kind
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(o *spanOptions) {
		o.kind = kind
	}
}

// StartSpan starts spanName on the load engine tracer. The caller ends it.
func StartSpan(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, trace.Span) {
	o := spanOptions{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&o)
	}

	start := []trace.SpanStartOption{trace.WithSpanKind(o.kind)}
	if len(o.attrs) > 0 {
		start = append(start, trace.WithAttributes(o.attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, spanName, start...)
}

// StartServiceSpan starts a span named {service}.{method}, e.g. "dispatch.load".
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, opts...)
}

// StartClientSpan starts a client span for an outbound call to peer.
func StartClientSpan(ctx context.Context, peer, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, peer+"."+operation,
		WithSpanKind(trace.SpanKindClient),
		WithAttribute(SpanAttrPeer, peer),
	)
}

// SetAttributes sets alternating key/value pairs on span. Pairs with a
// non-string key and a trailing key without a value are skipped.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	span.SetAttributes(pairs(keyValues)...)
}

// SetAttribute sets one attribute on span.
func SetAttribute(span trace.Span, key string, value any) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// RecordError records err on span and marks it failed. A nil err is a no-op.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks span as successful.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds a timestamped event carrying key/value pairs.
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(pairs(keyValues)...))
}

func pairs(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i+1]))
		}
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}

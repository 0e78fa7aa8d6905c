package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for application spans
const TracerName = "github.com/herbtrace/backend"

// Span attribute keys
var (
	SpanAttrItemID    = attribute.Key("herb.item_id")
	SpanAttrOperation = attribute.Key("herb.operation")
	SpanAttrTxID      = attribute.Key("ledger.tx_id")
	SpanAttrFunction  = attribute.Key("ledger.function")
	SpanAttrDegraded  = attribute.Key("journey.degraded")
)

// StartSpan starts an internal span on the global tracer provider. The caller ends it.
//
//	ctx, span := telemetry.StartSpan(ctx, "recorder.quality_test", telemetry.SpanAttrItemID.String(itemID))
//	defer span.End()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, name, trace.SpanKindInternal, attrs)
}

// StartClientSpan starts a span for a call that leaves the process, such as a
// ledger round trip.
func StartClientSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, name, trace.SpanKindClient, attrs)
}

func start(ctx context.Context, name string, kind trace.SpanKind, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(kind)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, opts...)
}

// RecordError records err on the span and marks it failed. Nil spans and nil
// errors are ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordTxID tags the span with a ledger transaction id once one is known.
func RecordTxID(span trace.Span, txID string) {
	if span == nil || txID == "" {
		return
	}
	span.SetAttributes(SpanAttrTxID.String(txID))
}

package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fieldMap(entry observer.LoggedEntry) map[string]any {
	return entry.ContextMap()
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Info("dropped")
}

func TestWithActor(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx, l := WithActor(context.Background(), zap.New(core), "lab-7", "lab")

	assert.Equal(t, "lab-7", GetActorID(ctx))
	assert.Equal(t, "lab", GetActorRole(ctx))

	l.Info("hello")
	FromContext(ctx).Info("again")

	require.Len(t, recorded.All(), 2)
	for _, e := range recorded.All() {
		assert.Equal(t, "lab-7", fieldMap(e)["actor_id"])
		assert.Equal(t, "lab", fieldMap(e)["actor_role"])
	}
}

func TestL_InjectsCorrelationFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx, _ = WithRequestID(ctx, zap.New(core), "req-1")
	ctx = WithItemID(ctx, "ASH1741942800000AB12")

	L(ctx).Info("quality test recorded", zap.Bool("passed", true))

	require.Len(t, recorded.All(), 1)
	fields := fieldMap(recorded.All()[0])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "ASH1741942800000AB12", fields["item_id"])
	assert.Equal(t, true, fields["passed"])

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(ctx))
	assert.Equal(t, "00f067aa0ba902b7", GetSpanID(ctx))
}

func TestL_WithoutSpan(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))

	L(ctx).With(zap.String("component", "recorder")).Warn("ledger slow")

	require.Len(t, recorded.All(), 1)
	fields := fieldMap(recorded.All()[0])
	assert.NotContains(t, fields, "trace_id")
	assert.Equal(t, "recorder", fields["component"])
	assert.Empty(t, GetTraceID(ctx))
}

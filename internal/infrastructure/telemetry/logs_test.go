package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(context.Background()))

	core := NewZapOTELCore(ZapBridgeConfig{ServiceName: "herbtrace", LoggerProvider: lp})
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestNewZapOTELCore_NilProvider(t *testing.T) {
	core := NewZapOTELCore(ZapBridgeConfig{ServiceName: "herbtrace"})
	assert.False(t, core.Enabled(zapcore.InfoLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, recorded := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	l := zap.New(core).With(zap.String("component", "ledger"))
	l.Info("dropped")
	l.Warn("kept")

	require.Len(t, recorded.All(), 1)
	entry := recorded.All()[0]
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "ledger", entry.ContextMap()["component"])
}

package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFunc() (string, int64) {
	return "SELECT * FROM herb_batches WHERE id = 'ASH1'", 1
}

func TestGormLogger_LogMode(t *testing.T) {
	gl := NewGormLogger(zap.NewNop(), gormlogger.Info)
	changed := gl.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	next, ok := changed.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, next.logLevel)
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		opts    []GormLoggerOption
		elapsed time.Duration
		err     error
		wantMsg string
	}{
		{name: "error logged", level: gormlogger.Error, err: errors.New("deadlock"), wantMsg: "Query failed"},
		{name: "not found ignored", level: gormlogger.Error, err: gormlogger.ErrRecordNotFound},
		{
			name: "not found logged when configured", level: gormlogger.Error,
			opts: []GormLoggerOption{WithIgnoreRecordNotFoundError(false)},
			err:  gormlogger.ErrRecordNotFound, wantMsg: "Query failed",
		},
		{
			name: "slow query warns", level: gormlogger.Warn,
			opts:    []GormLoggerOption{WithSlowThreshold(10 * time.Millisecond)},
			elapsed: 50 * time.Millisecond, wantMsg: "Slow query",
		},
		{name: "query logged at info", level: gormlogger.Info, wantMsg: "Query"},
		{name: "silent", level: gormlogger.Silent, err: errors.New("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gl := NewGormLogger(zap.New(core), tt.level, tt.opts...)

			ctx := WithItemID(context.Background(), "ASH1")
			gl.Trace(ctx, time.Now().Add(-tt.elapsed), sqlFunc, tt.err)

			if tt.wantMsg == "" {
				assert.Empty(t, recorded.All())
				return
			}
			entry := findEntry(t, recorded, tt.wantMsg)
			assert.Equal(t, "ASH1", entry.ContextMap()["item_id"])
			assert.Equal(t, int64(1), entry.ContextMap()["rows"])
		})
	}
}

func TestGormLogger_Messages(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Warn)

	gl.Info(context.Background(), "migrated %d tables", 3)
	gl.Warn(context.Background(), "slow %s", "pool")
	gl.Error(context.Background(), "broken %s", "conn")

	require.Len(t, recorded.All(), 2)
	assert.Equal(t, "slow pool", recorded.All()[0].Message)
	assert.Equal(t, "broken conn", recorded.All()[1].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("info"))
}

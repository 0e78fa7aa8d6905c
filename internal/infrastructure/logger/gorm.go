package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowThreshold = 200 * time.Millisecond

// GormLogger routes gorm output through zap. Query entries carry the same
// correlation fields as request logs, so a slow lock wait can be tied to the
// item and request that caused it.
type GormLogger struct {
	logger         *zap.Logger
	logLevel       gormlogger.LogLevel
	slowThreshold  time.Duration
	ignoreNotFound bool
}

type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow query threshold; zero disables slow query warnings
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowThreshold = threshold }
}

// WithIgnoreRecordNotFoundError controls logging of gorm.ErrRecordNotFound.
// Lookups of unknown items and trace codes are routine, so it defaults to true.
func WithIgnoreRecordNotFoundError(ignore bool) GormLoggerOption {
	return func(l *GormLogger) { l.ignoreNotFound = ignore }
}

func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:         zapLogger.Named("gorm"),
		logLevel:       level,
		slowThreshold:  defaultSlowThreshold,
		ignoreNotFound: true,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, enabledAt gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.logLevel < enabledAt {
		return
	}
	WithLogger(ctx, l.logger).Zap().Log(lvl, fmt.Sprintf(msg, data...))
}

// Trace logs a finished statement: failures at error, statements over the
// slow threshold at warn, everything else at debug when gorm is at Info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		lvl   zapcore.Level
		msg   string
		extra []zap.Field
	)
	switch {
	case err != nil:
		if l.logLevel < gormlogger.Error || (l.ignoreNotFound && errors.Is(err, gormlogger.ErrRecordNotFound)) {
			return
		}
		lvl, msg, extra = zapcore.ErrorLevel, "Query failed", []zap.Field{zap.Error(err)}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		if l.logLevel < gormlogger.Warn {
			return
		}
		lvl, msg, extra = zapcore.WarnLevel, "Slow query", []zap.Field{zap.Duration("threshold", l.slowThreshold)}
	default:
		if l.logLevel < gormlogger.Info {
			return
		}
		lvl, msg = zapcore.DebugLevel, "Query"
	}

	sql, rows := fc()
	fields := append([]zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}, extra...)
	WithLogger(ctx, l.logger).Zap().Log(lvl, msg, fields...)
}

// MapGormLogLevel maps the application log level to a gorm log level.
// Statement logging is reserved for debug.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

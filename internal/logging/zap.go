package logging

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements ContextLogger on a zap sugared logger. Loggers derived
// with With* share the parent's level.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewWithCore wraps an existing core. level must be the one the core was
// built with for SetLevel to take effect.
func NewWithCore(core zapcore.Core, level zap.AtomicLevel) *ZapLogger {
	return &ZapLogger{
		sugar: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar(),
		level: level,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	return &ZapLogger{
		sugar: zap.NewNop().Sugar(),
		level: zap.NewAtomicLevelAt(ErrorLevel),
	}
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *ZapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *ZapLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *ZapLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// SetLevel changes the level for this logger and everything derived from it.
func (l *ZapLogger) SetLevel(level Level) {
	l.level.SetLevel(level)
}

func (l *ZapLogger) GetLevel() Level {
	return l.level.Level()
}

// WithContext attaches the correlation, request and session IDs carried by ctx.
func (l *ZapLogger) WithContext(ctx context.Context) ContextLogger {
	var kv []interface{}
	if id, ok := CorrelationIDFromContext(ctx); ok {
		kv = append(kv, "correlation_id", id)
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		kv = append(kv, "request_id", id)
	}
	if id, ok := SessionIDFromContext(ctx); ok {
		kv = append(kv, "session_id", id)
	}
	if len(kv) == 0 {
		return l
	}
	return &ZapLogger{sugar: l.sugar.With(kv...), level: l.level}
}

func (l *ZapLogger) WithField(key string, value interface{}) ContextLogger {
	return &ZapLogger{sugar: l.sugar.With(key, value), level: l.level}
}

// WithFields adds fields in key order so output is stable.
func (l *ZapLogger) WithFields(fields map[string]interface{}) ContextLogger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return &ZapLogger{sugar: l.sugar.With(kv...), level: l.level}
}

// Sync flushes buffered output.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

// Close flushes the logger. Sync errors on stderr are expected on some
// platforms and ignored.
func (l *ZapLogger) Close() error {
	_ = l.sugar.Sync()
	return nil
}

// Package logger wraps zap behind the small interface the harvester components log through.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface used across the harvester.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)

	// The *Obj variants attach a structured object under key.
	DebugObj(msg, key string, obj any)
	InfoObj(msg, key string, obj any)
	WarnObj(msg, key string, obj any)
	ErrorObj(msg, key string, obj any)

	With(fields ...zap.Field) Logger
	Sync() error
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a production JSON logger at the given level ("debug", "info", "warn", "error").
func New(level string) (Logger, error) {
	lvl := zapcore.InfoLevel
	if level = strings.TrimSpace(level); level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		lvl = parsed
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &zapLogger{z: z}, nil
}

// FromZap adapts an existing zap logger.
func FromZap(z *zap.Logger) Logger {
	if z == nil {
		return NopLogger{}
	}
	return &zapLogger{z: z}
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field) { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field) { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

func (l *zapLogger) DebugObj(msg, key string, obj any) { l.z.Debug(msg, zap.Any(key, obj)) }
func (l *zapLogger) InfoObj(msg, key string, obj any) { l.z.Info(msg, zap.Any(key, obj)) }
func (l *zapLogger) WarnObj(msg, key string, obj any) { l.z.Warn(msg, zap.Any(key, obj)) }
func (l *zapLogger) ErrorObj(msg, key string, obj any) { l.z.Error(msg, zap.Any(key, obj)) }

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

func (l *zapLogger) Sync() error { return l.z.Sync() }

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...zap.Field) {}
func (NopLogger) Info(string, ...zap.Field) {}
func (NopLogger) Warn(string, ...zap.Field) {}
func (NopLogger) Error(string, ...zap.Field) {}
func (NopLogger) DebugObj(string, string, any) {}
func (NopLogger) InfoObj(string, string, any) {}
func (NopLogger) WarnObj(string, string, any) {}
func (NopLogger) ErrorObj(string, string, any) {}
func (n NopLogger) With(...zap.Field) Logger { return n }
func (NopLogger) Sync() error { return nil }

// Ensure returns log, or a NopLogger when log is nil.
func Ensure(log Logger) Logger {
	if log == nil {
		return NopLogger{}
	}
	return log
}

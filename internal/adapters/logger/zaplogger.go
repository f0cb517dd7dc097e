package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"cryptoSignalAgent/internal/ports"
)

// ZapLogger implements the ports.Logger interface on top of a zap.Logger.
type ZapLogger struct {
	logger *zap.Logger
}

// FileConfig configures the optional rotated file sink.
type FileConfig struct {
	Path       string // empty disables the file sink
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// rotator returns the lumberjack sink, or nil when no path is configured.
func (f FileConfig) rotator() *lumberjack.Logger {
	if f.Path == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   f.Path,
		MaxSize:    f.MaxSizeMB,
		MaxBackups: f.MaxBackups,
		MaxAge:     f.MaxAgeDays,
		Compress:   f.Compress,
	}
}

// NewZapLogger builds a JSON logger writing to stderr and, if configured, to a rotated file.
func NewZapLogger(level LogLevel, file FileConfig) *ZapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "time"
	encoder := zapcore.NewJSONEncoder(encCfg)
	lvl := toZapLevel(level)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lvl),
	}
	if rotator := file.rotator(); rotator != nil {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), lvl))
	}

	return &ZapLogger{logger: zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))}
}

// NewZapLoggerFrom wraps an existing zap.Logger.
func NewZapLoggerFrom(l *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: l}
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapFields(fields []map[string]interface{}) []zap.Field {
	merged := mergeFields(fields)
	if len(merged) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(merged))
	for k, v := range merged {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// Debug logs a message at Debug level.
func (l *ZapLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.Debug(msg, toZapFields(fields)...)
}

// Info logs a message at Info level.
func (l *ZapLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.Info(msg, toZapFields(fields)...)
}

// Warn logs a message at Warning level.
func (l *ZapLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.Warn(msg, toZapFields(fields)...)
}

// Error logs an error message at Error level.
func (l *ZapLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.logger.Error(msg, append(toZapFields(fields), zap.Error(err))...)
}

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// New selects a logger implementation by format name ("text" or "json").
// Both formats also write to the rotated file when file.Path is set.
func New(format string, level LogLevel, file FileConfig) (ports.Logger, error) {
	switch strings.ToLower(format) {
	case "", "text":
		if rotator := file.rotator(); rotator != nil {
			return NewStdLoggerTo(io.MultiWriter(os.Stderr, rotator), level), nil
		}
		return NewStdLogger(level), nil
	case "json":
		return NewZapLogger(level, file), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

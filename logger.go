package adbm

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/zap"
)

// LevelVerbose sits between slog.LevelDebug and slog.LevelInfo.
const LevelVerbose = slog.LevelDebug + 2

// Logger is the logging contract shared with migration runners.
type Logger interface {
	Debugf(format string, args ...any)
	Verbosef(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)   {}
func (NopLogger) Verbosef(string, ...any) {}
func (NopLogger) Infof(string, ...any)    {}
func (NopLogger) Warnf(string, ...any)    {}
func (NopLogger) Errorf(string, ...any)   {}

type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger adapts a slog.Logger. Verbose messages are logged at LevelVerbose.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{logger: logger}
}

func (l *slogLogger) log(level slog.Level, format string, args []any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, fmt.Sprintf(format, args...))
}

func (l *slogLogger) Debugf(format string, args ...any)   { l.log(slog.LevelDebug, format, args) }
func (l *slogLogger) Verbosef(format string, args ...any) { l.log(LevelVerbose, format, args) }
func (l *slogLogger) Infof(format string, args ...any)    { l.log(slog.LevelInfo, format, args) }
func (l *slogLogger) Warnf(format string, args ...any)    { l.log(slog.LevelWarn, format, args) }
func (l *slogLogger) Errorf(format string, args ...any)   { l.log(slog.LevelError, format, args) }

// ParseLevel converts a configured level name to a slog level.
// Unknown names fall back to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "verbose":
		return LevelVerbose
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ReplaceLevelNames is a slog ReplaceAttr function that prints LevelVerbose as "VRB".
func ReplaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelVerbose {
		return slog.String(slog.LevelKey, "VRB")
	}
	return a
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap.Logger. zap has no verbose level, so verbose
// messages go to debug with a verbose=true field.
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapLogger{sugar: logger.Sugar()}
}

func (l *zapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }

func (l *zapLogger) Verbosef(format string, args ...any) {
	l.sugar.Debugw(fmt.Sprintf(format, args...), "verbose", true)
}

func (l *zapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

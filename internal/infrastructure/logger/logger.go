package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It stays nil until Init, and the helpers
// below drop entries while it is nil.
var Log *zap.Logger

// helpers skips one frame so the caller field points at the call site.
var helpers *zap.Logger

// Init builds the JSON logger. level is one of debug, info, warn, error;
// anything else falls back to info.
func Init(env, level string) error {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Development:      env == "development",
		Encoding:         "json",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := cfg.Build(zap.Fields(zap.String("env", env)))
	if err != nil {
		return err
	}
	Log = l
	helpers = l.WithOptions(zap.AddCallerSkip(2))
	zap.ReplaceGlobals(l)
	return nil
}

func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

func write(lvl zapcore.Level, msg string, fields []zap.Field) {
	if Log == nil || helpers == nil {
		return
	}
	if ce := helpers.Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}

func Debug(msg string, fields ...zap.Field) { write(zapcore.DebugLevel, msg, fields) }
func Info(msg string, fields ...zap.Field) { write(zapcore.InfoLevel, msg, fields) }
func Warn(msg string, fields ...zap.Field) { write(zapcore.WarnLevel, msg, fields) }
func Error(msg string, fields ...zap.Field) { write(zapcore.ErrorLevel, msg, fields) }

// Fatal logs and exits the process.
func Fatal(msg string, fields ...zap.Field) { write(zapcore.FatalLevel, msg, fields) }

// Named returns a child of the global logger for a component, or a no-op
// logger before Init.
func Named(component string) *zap.Logger {
	if Log == nil {
		return zap.NewNop()
	}
	return Log.Named(component)
}

package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface used throughout the application.
// Other packages log through this interface and the field constructors below
// so they don't import zap directly.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)

	Named(name string) Logger
	Sync() error
}

type zapLogger struct {
	base *zap.Logger
}

// New builds a Logger at the given level. Pretty selects the zap development
// encoder (colored console), otherwise production JSON output is used.
func New(level string, pretty bool) Logger {
	var cfg zap.Config
	if pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	base, err := cfg.Build(zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		panic(err)
	}
	return &zapLogger{base: base}
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger {
	return &zapLogger{base: zap.NewNop()}
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.base.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.base.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.base.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.base.Error(msg, fields...) }

func (l *zapLogger) Named(name string) Logger { return &zapLogger{base: l.base.Named(name)} }
func (l *zapLogger) Sync() error              { return l.base.Sync() }

// Field constructors re-exported from zap for convenience.
func String(key, val string) zap.Field                 { return zap.String(key, val) }
func Int(key string, val int) zap.Field                { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field            { return zap.Int64(key, val) }
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) zap.Field         { return zap.Time(key, val) }
func Bool(key string, val bool) zap.Field              { return zap.Bool(key, val) }
func Error(err error) zap.Field                        { return zap.Error(err) }

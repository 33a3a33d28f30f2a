package mlog

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the zap-backed implementation of Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a ZapLogger. envName selects the production (JSON) encoder
// vs. the development (console) encoder, the same toggle the runtime's
// Config.EnvName carries. levelName is parsed with zapcore.Level.Set and
// falls back to info on error.
func New(envName, levelName string) (*ZapLogger, error) {
	var cfg zap.Config

	if envName == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if levelName != "" {
		var lvl zapcore.Level
		if err := lvl.Set(levelName); err != nil {
			log.Printf("invalid log level %q, falling back to info: %v", levelName, err)

			lvl = zapcore.InfoLevel
		}

		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &ZapLogger{sugar: logger.Sugar()}, nil
}

// NewForTests returns a ZapLogger wired for development output, for use
// in package tests that want real log lines instead of the no-op logger.
func NewForTests() *ZapLogger {
	l, err := New("test", "debug")
	if err != nil {
		// zap's development config never fails to build; this is unreachable
		// in practice, kept so New's signature stays honest about errors.
		os.Exit(1)
	}

	return l
}

func (l *ZapLogger) Info(args ...any)                  { l.sugar.Info(args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Infoln(args ...any)                { l.sugar.Infoln(args...) }
func (l *ZapLogger) Error(args ...any)                 { l.sugar.Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
func (l *ZapLogger) Errorln(args ...any)               { l.sugar.Errorln(args...) }
func (l *ZapLogger) Warn(args ...any)                  { l.sugar.Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Warnln(args ...any)                { l.sugar.Warnln(args...) }
func (l *ZapLogger) Debug(args ...any)                 { l.sugar.Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Debugln(args ...any)               { l.sugar.Debugln(args...) }
func (l *ZapLogger) Fatal(args ...any)                 { l.sugar.Fatal(args...) }
func (l *ZapLogger) Fatalf(format string, args ...any) { l.sugar.Fatalf(format, args...) }

// WithFields returns a child logger with the given key-value pairs attached.
func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(fields...)}
}

// Sync flushes any buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

// Package mlog provides the leveled logging interface used across the
// runtime, with a zap-backed implementation and a no-op implementation
// for tests.
package mlog

// Logger is the common interface for log implementations used by every
// layer of the runtime. Orchestration code depends on this interface,
// never on zap directly.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)
	Infoln(args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)
	Errorln(args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)
	Warnln(args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)
	Debugln(args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	WithFields(fields ...any) Logger

	Sync() error
}

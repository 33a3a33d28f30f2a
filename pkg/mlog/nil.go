package mlog

// NopLogger discards everything. Used as the default in tests and in any
// code path that builds a component without an injected Logger.
type NopLogger struct{}

func (NopLogger) Info(args ...any)                  {}
func (NopLogger) Infof(format string, args ...any)  {}
func (NopLogger) Infoln(args ...any)                {}
func (NopLogger) Error(args ...any)                 {}
func (NopLogger) Errorf(format string, args ...any) {}
func (NopLogger) Errorln(args ...any)               {}
func (NopLogger) Warn(args ...any)                  {}
func (NopLogger) Warnf(format string, args ...any)  {}
func (NopLogger) Warnln(args ...any)                {}
func (NopLogger) Debug(args ...any)                 {}
func (NopLogger) Debugf(format string, args ...any) {}
func (NopLogger) Debugln(args ...any)               {}
func (NopLogger) Fatal(args ...any)                 {}
func (NopLogger) Fatalf(format string, args ...any) {}
func (l NopLogger) WithFields(fields ...any) Logger { return l }
func (NopLogger) Sync() error                       { return nil }

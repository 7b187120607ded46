package logging

// NopLogger discards everything. Used in tests and for components that
// are not given an explicit logger.
type NopLogger struct{}

// NewNop creates a no-op Logger.
func NewNop() Logger { return &NopLogger{} }

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (l NopLogger) With(...Field) Logger { return l }
func (NopLogger) Sync() error            { return nil }

package logger

// NopLogger discards everything. Tests and library callers without a sink use it.
type NopLogger struct{}

// NewNop returns a logger that drops all entries.
func NewNop() Logger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...Field) {}
func (*NopLogger) Info(string, ...Field) {}
func (*NopLogger) Warn(string, ...Field) {}
func (*NopLogger) Error(string, ...Field) {}
func (n *NopLogger) With(...Field) Logger { return n }
func (*NopLogger) Sync() error { return nil }

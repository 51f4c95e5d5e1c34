package auth

import (
	"github.com/hashicorp/go-hclog"
)

// Logger is the logging seam used throughout the library. Implementations
// must be safe for concurrent use.
type Logger interface {
	Trace(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// HCLogger adapts a hashicorp/go-hclog logger to the Logger interface.
type HCLogger struct {
	logger hclog.Logger
}

// NewHCLogger creates a Logger backed by the supplied hclog logger. A nil
// logger falls back to hclog.Default().
func NewHCLogger(logger hclog.Logger) *HCLogger {
	if logger == nil {
		logger = hclog.Default()
	}
	return &HCLogger{logger: logger}
}

func (l *HCLogger) Trace(msg string, fields map[string]any) {
	l.logger.Trace(msg, flatten(fields)...)
}

func (l *HCLogger) Debug(msg string, fields map[string]any) {
	l.logger.Debug(msg, flatten(fields)...)
}

func (l *HCLogger) Info(msg string, fields map[string]any) {
	l.logger.Info(msg, flatten(fields)...)
}

func (l *HCLogger) Warn(msg string, fields map[string]any) {
	l.logger.Warn(msg, flatten(fields)...)
}

func (l *HCLogger) Error(msg string, fields map[string]any) {
	l.logger.Error(msg, flatten(fields)...)
}

// flatten converts a field map to hclog's alternating key/value form.
func flatten(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// NopLogger discards all log output. It is the default for components
// constructed without an explicit logger.
type NopLogger struct{}

func (NopLogger) Trace(string, map[string]any) {}
func (NopLogger) Debug(string, map[string]any) {}
func (NopLogger) Info(string, map[string]any)  {}
func (NopLogger) Warn(string, map[string]any)  {}
func (NopLogger) Error(string, map[string]any) {}

// orNopLogger substitutes a NopLogger for nil.
func orNopLogger(logger Logger) Logger {
	if logger == nil {
		return NopLogger{}
	}
	return logger
}

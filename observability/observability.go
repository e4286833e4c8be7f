// Package observability is the logging seam shared by the parser, renderer
// and stamper. Library packages log through Logger; the CLI plugs in a
// charmbracelet logger with NewCharmLogger and tests use NopLogger.
package observability

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is one structured key/value pair attached to a log line.
type Field interface {
	Key() string
	Value() any
}

type field[T any] struct {
	key string
	val T
}

func (f field[T]) Key() string { return f.key }
func (f field[T]) Value() any  { return f.val }

func String(key, value string) Field          { return field[string]{key, value} }
func Int(key string, value int) Field         { return field[int]{key, value} }
func Int64(key string, value int64) Field     { return field[int64]{key, value} }
func Float64(key string, value float64) Field { return field[float64]{key, value} }
func Error(key string, err error) Field       { return field[error]{key, err} }

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

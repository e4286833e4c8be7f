package observability

import "github.com/charmbracelet/log"

// charmLogger forwards library log calls to a charmbracelet logger.
type charmLogger struct {
	l *log.Logger
}

// NewCharmLogger adapts l to the Logger interface. A nil l uses log.Default().
func NewCharmLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}
	return charmLogger{l: l}
}

func (c charmLogger) Debug(msg string, fields ...Field) { c.l.Debug(msg, keyvals(fields)...) }
func (c charmLogger) Info(msg string, fields ...Field)  { c.l.Info(msg, keyvals(fields)...) }
func (c charmLogger) Warn(msg string, fields ...Field)  { c.l.Warn(msg, keyvals(fields)...) }
func (c charmLogger) Error(msg string, fields ...Field) { c.l.Error(msg, keyvals(fields)...) }

func (c charmLogger) With(fields ...Field) Logger {
	return charmLogger{l: c.l.With(keyvals(fields)...)}
}

func keyvals(fields []Field) []any {
	if len(fields) == 0 {
		return nil
	}
	kv := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		kv = append(kv, f.Key(), f.Value())
	}
	return kv
}

package recovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/pboffice01/PDFGeneral/observability"
)

// StrictStrategy rejects the first defect.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy { return &StrictStrategy{} }

func (*StrictStrategy) OnError(context.Context, error, Location) Action { return ActionFail }

// LenientStrategy keeps going and collects every defect with its location.
type LenientStrategy struct {
	mu     sync.Mutex
	Errors []error
}

func NewLenientStrategy() *LenientStrategy { return &LenientStrategy{} }

func (s *LenientStrategy) OnError(_ context.Context, err error, location Location) Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, fmt.Errorf("%s: %w", location, err))
	return ActionWarn
}

// LoggingStrategy continues like LenientStrategy but reports each defect as
// a warning instead of keeping it.
type LoggingStrategy struct {
	logger observability.Logger
}

func NewLoggingStrategy(logger observability.Logger) *LoggingStrategy {
	return &LoggingStrategy{logger: observability.OrNop(logger)}
}

func (s *LoggingStrategy) OnError(_ context.Context, err error, location Location) Action {
	s.logger.Warn("recovered malformed pdf input",
		observability.String("component", location.Component),
		observability.Int64("offset", location.ByteOffset),
		observability.Int("object", location.ObjectNum),
		observability.Error("error", err),
	)
	return ActionWarn
}

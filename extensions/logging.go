package extensions

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahlfors/depgraph"
)

// InstrumentationLogger logs every compute invocation's timing and outcome
// at DEBUG/ERROR level, the same wrap-time-and-log shape the teacher's
// LoggingExtension applies around resolve/update operations.
type InstrumentationLogger struct {
	depgraph.BaseInstrumentation
	logger *slog.Logger
}

// NewInstrumentationLogger builds a logging instrumentation writing through
// logger.
func NewInstrumentationLogger(logger *slog.Logger) *InstrumentationLogger {
	return &InstrumentationLogger{
		BaseInstrumentation: depgraph.NewBaseInstrumentation("logging"),
		logger:              logger,
	}
}

func (l *InstrumentationLogger) Wrap(ctx context.Context, k depgraph.Key, next func() (depgraph.Value, error)) (depgraph.Value, error) {
	start := time.Now()
	l.logger.Debug("compute starting", "key", k.String())

	value, err := next()

	duration := time.Since(start)
	if err != nil {
		l.logger.Error("compute failed", "key", k.String(), "duration", duration, "error", err)
	} else {
		l.logger.Debug("compute completed", "key", k.String(), "duration", duration)
	}
	return value, err
}

package audit

import (
	"context"
	"errors"
)

// MultiLogger fans audit events out to multiple loggers. One failing
// destination never blocks the others.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger writing to every destination.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes the event to all destinations and joins any errors.
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all destinations.
func (m *MultiLogger) Close() error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

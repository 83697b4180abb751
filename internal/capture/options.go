package capture

import (
	"time"

	"codeberg.org/mutker/serialmon/internal/logger"
)

// Option configures a Loop.
type Option func(*Loop)

// WithObserver sets the diagnostic observer. The default discards everything.
func WithObserver(o Observer) Option {
	return func(l *Loop) {
		if o != nil {
			l.observer = o
		}
	}
}

// WithDelimiter sets the field delimiter used to split records.
func WithDelimiter(delimiter string) Option {
	return func(l *Loop) {
		l.parser = NewParser(delimiter)
	}
}

// WithLogger sets the logger for lifecycle messages.
func WithLogger(log logger.Logger) Option {
	return func(l *Loop) {
		if log != nil {
			l.logger = log
		}
	}
}

// WithClock overrides the ingestion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

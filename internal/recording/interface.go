package recording

import (
	"context"
	"time"

	"codeberg.org/mutker/serialmon/internal/history"
)

// Sink persists a finished recording and reports where it went.
type Sink interface {
	Persist(ctx context.Context, rec *Recording) (string, error)
	Close() error
}

// Recording is the extract handed to a Sink.
type Recording struct {
	ID        string
	StartedAt time.Time
	StoppedAt time.Time
	Channels  int
	Window    history.Window
}

// Rows returns the samples to persist, in ingestion order.
func (r *Recording) Rows() []history.Sample {
	return r.Window.Samples
}

// Result reports what a stopped recording persisted.
type Result struct {
	ID        string
	Location  string
	Rows      int
	Requested uint64
	Dropped   uint64
	Clamped   bool
	Duration  time.Duration

	// Unsaved holds the extract when the sink failed so it can be
	// handed to Persist again.
	Unsaved *Recording
}

package recording

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/history"
	"codeberg.org/mutker/serialmon/internal/logger"
	"github.com/google/uuid"
)

type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// Session carves contiguous ranges out of a History. The start marker is a
// counter value, not a buffer index, so it stays valid while eviction
// continues underneath it.
type Session struct {
	history history.Reader
	logger  logger.Logger
	now     func() time.Time

	mu        sync.Mutex
	state     State
	start     uint64
	startedAt time.Time
	id        string
}

func NewSession(h history.Reader, log logger.Logger) *Session {
	return &Session{
		history: h,
		logger:  log,
		now:     time.Now,
	}
}

// Start begins recording. Samples appended after this call belong to the
// recording; samples already retained do not. It reports whether the
// session changed state.
func (s *Session) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return false
	}

	s.state = StateRecording
	s.start = s.history.Counter()
	s.startedAt = s.now()
	s.id = uuid.NewString()

	s.logger.Info().
		Str("recording_id", s.id).
		Uint64("start_counter", s.start).
		Msg("Started recording")

	return true
}

// Stop ends the recording and hands the window [start, counter) to sink.
// It returns nil, nil when no recording is active. When eviction has
// consumed the head of the window the remaining samples are persisted and
// Result.Clamped is set. Sink failures are returned; the session is idle
// afterwards either way.
func (s *Session) Stop(ctx context.Context, sink Sink) (*Result, error) {
	errFactory := errors.New()

	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil, nil
	}
	if sink == nil {
		s.mu.Unlock()
		return nil, errFactory.New(ErrNilSink)
	}

	start, startedAt, id := s.start, s.startedAt, s.id
	s.state = StateIdle
	s.start = 0
	s.id = ""
	s.mu.Unlock()

	window := s.history.Since(start)
	rec := &Recording{
		ID:        id,
		StartedAt: startedAt,
		StoppedAt: s.now(),
		Channels:  s.history.Channels(),
		Window:    window,
	}

	result := &Result{
		ID:        id,
		Rows:      len(window.Samples),
		Requested: window.Requested(),
		Dropped:   window.Dropped(),
		Clamped:   window.Clamped(),
		Duration:  rec.StoppedAt.Sub(startedAt),
	}

	if result.Clamped {
		s.logger.Warn().
			Str("recording_id", id).
			Uint64("requested", result.Requested).
			Uint64("dropped", result.Dropped).
			Int("rows", result.Rows).
			Msg("Recording window partially evicted before stop")
	}

	location, err := sink.Persist(ctx, rec)
	if err != nil {
		result.Unsaved = rec
		return result, errFactory.Wrap(ErrSinkFailed, err)
	}
	result.Location = location

	s.logger.Info().
		Str("recording_id", id).
		Str("location", location).
		Int("rows", result.Rows).
		Bool("clamped", result.Clamped).
		Msg("Stopped recording")

	return result, nil
}

// Toggle starts an idle session or stops an active one.
func (s *Session) Toggle(ctx context.Context, sink Sink) (*Result, error) {
	if s.Start() {
		return nil, nil
	}
	return s.Stop(ctx, sink)
}

func (s *Session) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRecording
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartCounter returns the start marker while recording.
func (s *Session) StartCounter() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start, s.state == StateRecording
}

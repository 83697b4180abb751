package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/history"
	"codeberg.org/mutker/serialmon/internal/logger"
)

// Monitor periodically reads the most recent samples and hands a summary
// to a Renderer. It never blocks the capture loop: every refresh works on
// a copy taken through the history.Reader.
type Monitor struct {
	history   history.Reader
	recording RecordingState
	renderer  Renderer
	cfg       Config
	logger    logger.Logger
	now       func() time.Time
	running   atomic.Bool
	lastSeen  atomic.Uint64
}

func New(h history.Reader, rec RecordingState, r Renderer, cfg Config, log logger.Logger) (*Monitor, error) {
	errFactory := errors.New()

	if h == nil {
		return nil, errFactory.New(ErrNilHistory)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		r = NewLogRenderer(log)
	}

	return &Monitor{
		history:   h,
		recording: rec,
		renderer:  r,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}, nil
}

// Run refreshes every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New().New(ErrAlreadyRun)
	}
	defer m.running.Store(false)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Debug().
		Dur("interval", m.cfg.Interval).
		Int("width", m.cfg.Width).
		Msg("Monitor started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug().Msg("Monitor stopped")
			return nil
		case <-ticker.C:
			m.Refresh()
		}
	}
}

// Refresh builds a frame from the last Width samples and renders it. Frames
// are rendered even when no new samples arrived so that recording state
// changes are visible.
func (m *Monitor) Refresh() Frame {
	samples := m.history.Last(m.cfg.Width)

	frame := Frame{
		Time:     m.now(),
		Counter:  m.history.Counter(),
		Samples:  len(samples),
		Channels: Summarize(samples),
	}
	if m.recording != nil {
		frame.Recording = m.recording.IsRecording()
	}

	if prev := m.lastSeen.Swap(frame.Counter); prev == frame.Counter && frame.Samples > 0 {
		m.logger.Debug().Uint64("counter", frame.Counter).Msg("No new samples since last refresh")
	}

	m.renderer.Render(frame)

	return frame
}

// Summarize computes per-channel statistics. Samples are assumed to share
// one arity, as History guarantees.
func Summarize(samples []history.Sample) []ChannelStats {
	if len(samples) == 0 {
		return []ChannelStats{}
	}

	channels := len(samples[0].Values)
	stats := make([]ChannelStats, channels)
	sums := make([]float64, channels)

	for i, v := range samples[0].Values {
		stats[i].Min = v
		stats[i].Max = v
	}

	for _, s := range samples {
		for i, v := range s.Values {
			if v < stats[i].Min {
				stats[i].Min = v
			}
			if v > stats[i].Max {
				stats[i].Max = v
			}
			sums[i] += v
		}
	}

	last := samples[len(samples)-1].Values
	for i := range stats {
		stats[i].Mean = sums[i] / float64(len(samples))
		stats[i].Last = last[i]
	}

	return stats
}

package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/history"
	"codeberg.org/mutker/serialmon/internal/logger"
	"codeberg.org/mutker/serialmon/internal/transport"
)

// Appender is the write side of a History.
type Appender interface {
	Append(values []float64, ts time.Time) (history.Sample, error)
}

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Stats struct {
	LinesRead       uint64
	LinesRejected   uint64
	SamplesAppended uint64
	EmptyPolls      uint64
}

// Loop reads records from a transport, parses them and appends them to a
// History. It is the only writer of that History.
type Loop struct {
	transport transport.Transport
	history   Appender
	parser    *Parser
	observer  Observer
	logger    logger.Logger
	now       func() time.Time

	state    atomic.Int32
	read     atomic.Uint64
	rejected atomic.Uint64
	appended atomic.Uint64
	polls    atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	err    error
	done   chan struct{}
}

func New(t transport.Transport, h Appender, opts ...Option) *Loop {
	l := &Loop{
		transport: t,
		history:   h,
		parser:    NewParser(DefaultDelimiter),
		observer:  NopObserver{},
		logger:    logger.New(),
		now:       time.Now,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Run captures until ctx is cancelled or the transport fails. It returns
// nil on cancellation and an ErrTransportFatal error on transport failure.
// The transport is closed before Run returns. A Loop runs at most once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return errors.New().New(ErrAlreadyStarted)
	}

	l.logger.Info().Str("transport", l.transport.Name()).Msg("Capture started")

	err := l.run(ctx)

	if closeErr := l.transport.Close(); closeErr != nil {
		l.logger.Warn().Err(closeErr).Msg("Failed to close transport")
	}

	l.mu.Lock()
	l.err = err
	l.mu.Unlock()

	if err != nil {
		l.state.Store(int32(StateFailed))
		l.logger.Error().Err(err).Msg("Capture terminated")
	} else {
		l.state.Store(int32(StateStopped))
		l.logger.Info().Msg("Capture stopped")
	}
	close(l.done)

	return err
}

func (l *Loop) run(ctx context.Context) error {
	errFactory := errors.New()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := l.transport.ReadLine()
		if err != nil {
			if errors.Is(err, transport.ErrNoData) {
				l.polls.Add(1)
				continue
			}
			return errFactory.Wrap(ErrTransportFatal, err)
		}

		l.read.Add(1)
		l.observer.LineReceived(line)

		values, err := l.parser.Parse(line)
		if err != nil {
			l.rejected.Add(1)
			l.observer.LineRejected(line, err)
			continue
		}

		sample, err := l.history.Append(values, l.now())
		if err != nil {
			// The parser already enforces arity, so this is a defect.
			return errFactory.Wrap(ErrHistoryRejected, err)
		}

		l.appended.Add(1)
		l.observer.SampleAppended(sample)
	}
}

// Start runs the loop on its own goroutine.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil || l.State() != StateIdle {
		return errors.New().New(ErrAlreadyStarted)
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	go func() {
		_ = l.Run(ctx)
	}()

	return nil
}

// Stop requests cancellation and waits up to timeout for the loop to exit.
// It returns the loop's terminal error, if any.
func (l *Loop) Stop(timeout time.Duration) error {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-l.done:
		return l.Err()
	case <-timer.C:
		return errors.New().WithData(ErrStopTimeout, timeout.String())
	}
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Err returns the terminal error after the loop exited, or nil.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

// Channels returns the channel count fixed by the first parsed record.
func (l *Loop) Channels() int {
	return l.parser.Channels()
}

func (l *Loop) Stats() Stats {
	return Stats{
		LinesRead:       l.read.Load(),
		LinesRejected:   l.rejected.Load(),
		SamplesAppended: l.appended.Load(),
		EmptyPolls:      l.polls.Load(),
	}
}

package main

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/serialmon/internal/capture"
	"codeberg.org/mutker/serialmon/internal/config"
	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/history"
	"codeberg.org/mutker/serialmon/internal/logger"
	"codeberg.org/mutker/serialmon/internal/monitor"
	"codeberg.org/mutker/serialmon/internal/recording"
	"codeberg.org/mutker/serialmon/internal/transport"
)

type app struct {
	cfg     *config.Config
	log     logger.Logger
	history *history.History
	loop    *capture.Loop
	session *recording.Session
	sink    recording.Sink
	monitor *monitor.Monitor

	stopMonitor context.CancelFunc
	monitorWG   sync.WaitGroup
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	errFactory := errors.New()

	h, err := history.New(cfg.MaxMemory)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	sink, err := recording.NewSink(cfg.Recording(), log.With("recording"))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	t, err := openTransport(ctx, cfg, log.With("transport"))
	if err != nil {
		sink.Close()
		return nil, err
	}

	captureLog := log.With("capture")
	loop := capture.New(t, h,
		capture.WithDelimiter(cfg.Delimiter),
		capture.WithObserver(capture.NewLogObserver(captureLog)),
		capture.WithLogger(captureLog),
	)

	session := recording.NewSession(h, log.With("recording"))

	mon, err := monitor.New(h, session, nil, monitor.Config{
		Interval: cfg.RefreshInterval,
		Width:    cfg.PlotWidth,
	}, log.With("monitor"))
	if err != nil {
		t.Close()
		sink.Close()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		history: h,
		loop:    loop,
		session: session,
		sink:    sink,
		monitor: mon,
	}, nil
}

// openTransport opens the configured source, retrying every
// OpenRetryInterval until it succeeds or ctx is cancelled. A zero interval
// fails on the first error.
func openTransport(ctx context.Context, cfg *config.Config, log logger.Logger) (transport.Transport, error) {
	errFactory := errors.New()

	for attempt := 1; ; attempt++ {
		t, err := transport.Open(cfg.Transport(), log)
		if err == nil {
			return t, nil
		}

		if cfg.OpenRetryInterval == 0 {
			return nil, errFactory.Wrap(errors.ErrOpenDevice, err)
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", cfg.OpenRetryInterval).
			Msg("Failed to open port, retrying")

		timer := time.NewTimer(cfg.OpenRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errFactory.Wrap(errors.ErrCanceled, ctx.Err())
		case <-timer.C:
		}
	}
}

func (a *app) start(ctx context.Context) error {
	if err := a.loop.Start(ctx); err != nil {
		return errors.New().Wrap(errors.ErrInitApp, err)
	}

	monCtx, cancel := context.WithCancel(ctx)
	a.stopMonitor = cancel

	a.monitorWG.Add(1)
	go func() {
		defer a.monitorWG.Done()
		if err := a.monitor.Run(monCtx); err != nil {
			a.log.Error().Err(err).Msg("Monitor failed")
		}
	}()

	return nil
}

// wait blocks until ctx is cancelled or capture ends, toggling the
// recording for every value received on toggles.
func (a *app) wait(ctx context.Context, toggles <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.loop.Done():
			return
		case <-toggles:
			// Shutdown persists an active recording itself.
			if ctx.Err() != nil {
				return
			}
			if _, err := a.toggleRecording(); err != nil {
				logError(err, "Failed to toggle recording")
			}
		}
	}
}

// toggleRecording persists under its own deadline so that a cancellation
// arriving with the toggle cannot discard the window.
func (a *app) toggleRecording() (*recording.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.StopTimeout)
	defer cancel()

	result, err := a.session.Toggle(ctx, a.sink)
	if err != nil {
		return result, errors.New().Wrap(errors.ErrToggleRecord, err)
	}

	if result != nil {
		logger.Info().
			Str("location", result.Location).
			Int("rows", result.Rows).
			Dur("duration", result.Duration).
			Msg("Recording saved")
	} else if a.session.IsRecording() {
		logger.Info().Msg("Recording started")
	}

	return result, nil
}

// shutdown stops capture, persists an active recording and releases the
// sink. The returned error is the first failure; later steps still run.
func (a *app) shutdown() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.stopMonitor != nil {
		a.stopMonitor()
	}
	a.monitorWG.Wait()

	if err := a.loop.Stop(a.cfg.StopTimeout); err != nil {
		err = errors.New().Wrap(errors.ErrMainLoop, err)
		logError(err, "Capture did not stop cleanly")
		keep(err)
	}

	if a.session.IsRecording() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.StopTimeout)
		result, err := a.session.Stop(ctx, a.sink)
		cancel()
		if err != nil {
			logError(err, "Failed to save recording")
			keep(err)
		} else {
			logger.Info().
				Str("location", result.Location).
				Int("rows", result.Rows).
				Msg("Recording saved on shutdown")
		}
	}

	if err := a.sink.Close(); err != nil {
		logError(err, "Failed to close recording sink")
		keep(err)
	}

	stats := a.loop.Stats()
	logger.Info().
		Uint64("lines", stats.LinesRead).
		Uint64("rejected", stats.LinesRejected).
		Uint64("samples", stats.SamplesAppended).
		Msg("Exiting...")

	return firstErr
}

func logError(err error, msg string) {
	var coded errors.Error
	if errors.As(err, &coded) {
		logger.ErrorWithCode(coded).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}

package main

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/serialmon/internal/capture"
	"codeberg.org/mutker/serialmon/internal/config"
	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unpluggedTransport struct{}

func (unpluggedTransport) ReadLine() (string, error) { return "", stderrors.New("device unplugged") }
func (unpluggedTransport) Close() error { return nil }
func (unpluggedTransport) Name() string { return "unplugged" }

func simulatedConfig(t *testing.T, extra ...string) *config.Config {
	t.Helper()
	args := append([]string{
		"--simulate",
		"--sim-channels", "3",
		"--sim-interval", "2ms",
		"--read-timeout", "10ms",
		"--refresh-interval", "10ms",
		"--max-memory", "10000",
		"--save-dir", t.TempDir(),
	}, extra...)

	cfg, err := config.Load(args, config.WithOutput(io.Discard))
	require.NoError(t, err)
	return cfg
}

func TestAppRecordsSimulatedData(t *testing.T) {
	cfg := simulatedConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, a.start(ctx))

	result, err := a.toggleRecording()
	require.NoError(t, err)
	assert.Nil(t, result)
	require.True(t, a.session.IsRecording())

	start, _ := a.session.StartCounter()
	require.Eventually(t, func() bool { return a.history.Counter() >= start+5 }, 5*time.Second, time.Millisecond)

	result, err = a.toggleRecording()
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.GreaterOrEqual(t, result.Rows, 5)
	assert.False(t, result.Clamped)

	content, err := os.ReadFile(result.Location)
	require.NoError(t, err)
	assert.NotEmpty(t, content)

	require.NoError(t, a.shutdown())
	assert.Equal(t, 3, a.history.Channels())
}

func TestAppShutdownSavesActiveRecording(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "recordings.db")
	cfg := simulatedConfig(t, "--sink", "sqlite", "--db-path", dbPath)
	ctx, cancel := context.WithCancel(context.Background())

	a, err := newApp(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, a.start(ctx))

	require.True(t, a.session.Start())
	start, _ := a.session.StartCounter()
	require.Eventually(t, func() bool { return a.history.Counter() >= start+3 }, 5*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, a.shutdown())
	assert.False(t, a.session.IsRecording())

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestToggleAfterCancelSavesRecording(t *testing.T) {
	cfg := simulatedConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	a, err := newApp(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, a.start(ctx))

	require.True(t, a.session.Start())
	start, _ := a.session.StartCounter()
	require.Eventually(t, func() bool { return a.history.Counter() >= start+3 }, 5*time.Second, time.Millisecond)

	cancel()

	result, err := a.toggleRecording()
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.GreaterOrEqual(t, result.Rows, 3)

	entries, err := os.ReadDir(cfg.SaveDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, a.shutdown())
}

func TestWaitLeavesRecordingToShutdownAfterCancel(t *testing.T) {
	cfg := simulatedConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	a, err := newApp(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, a.start(ctx))

	require.True(t, a.session.Start())
	start, _ := a.session.StartCounter()
	require.Eventually(t, func() bool { return a.history.Counter() >= start+3 }, 5*time.Second, time.Millisecond)

	cancel()
	toggles := make(chan struct{}, 1)
	toggles <- struct{}{}
	a.wait(ctx, toggles)

	assert.True(t, a.session.IsRecording(), "toggle after cancel is left to shutdown")
	require.NoError(t, a.shutdown())
	assert.False(t, a.session.IsRecording())

	entries, err := os.ReadDir(cfg.SaveDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWaitReturnsOnCancel(t *testing.T) {
	cfg := simulatedConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	a, err := newApp(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, a.start(ctx))

	toggles := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		a.wait(ctx, toggles)
		close(done)
	}()

	toggles <- struct{}{}
	require.Eventually(t, a.session.IsRecording, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not return")
	}
	require.NoError(t, a.shutdown())
}

func TestOpenTransportFailFast(t *testing.T) {
	cfg := simulatedConfig(t)
	cfg.Simulate = false
	cfg.Port = filepath.Join(t.TempDir(), "missing-port")
	cfg.OpenRetryInterval = 0

	_, err := openTransport(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrOpenDevice))
}

func TestOpenTransportRetryHonorsCancel(t *testing.T) {
	cfg := simulatedConfig(t)
	cfg.Simulate = false
	cfg.Port = filepath.Join(t.TempDir(), "missing-port")
	cfg.OpenRetryInterval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := openTransport(ctx, cfg, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCanceled))
}

func TestRunHelp(t *testing.T) {
	assert.Equal(t, exitOK, run([]string{"--help"}))
	assert.Equal(t, exitConfig, run([]string{"--max-memory", "0", "--simulate"}))
}

func TestShutdownReportsCaptureFailure(t *testing.T) {
	cfg := simulatedConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	a.loop = capture.New(unpluggedTransport{}, a.history, capture.WithLogger(logger.Nop()))
	require.NoError(t, a.start(ctx))

	a.wait(ctx, nil)

	err = a.shutdown()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrMainLoop))
	assert.True(t, errors.HasCode(err, capture.ErrTransportFatal))
}

package recording_test

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/history"
	"codeberg.org/mutker/serialmon/internal/logger"
	"codeberg.org/mutker/serialmon/internal/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	persist []*recording.Recording
	err     error
}

func (m *memorySink) Persist(_ context.Context, rec *recording.Recording) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.persist = append(m.persist, rec)
	return "memory://" + rec.ID, nil
}

func (*memorySink) Close() error { return nil }

func (m *memorySink) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.persist)
}

func (m *memorySink) last() *recording.Recording {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persist[len(m.persist)-1]
}

func newHistory(t *testing.T, capacity int) *history.History {
	t.Helper()
	h, err := history.New(capacity)
	require.NoError(t, err)
	return h
}

func appendN(t *testing.T, h *history.History, from, to int) {
	t.Helper()
	for i := from; i <= to; i++ {
		_, err := h.Append([]float64{float64(i)}, time.Now())
		require.NoError(t, err)
	}
}

func rowValues(rec *recording.Recording) []float64 {
	out := make([]float64, 0, len(rec.Rows()))
	for _, s := range rec.Rows() {
		out = append(out, s.Values[0])
	}
	return out
}

func TestRecordingRoundTrip(t *testing.T) {
	h := newHistory(t, 10)
	appendN(t, h, 1, 5)

	session := recording.NewSession(h, logger.Nop())
	require.True(t, session.Start())

	start, ok := session.StartCounter()
	require.True(t, ok)
	assert.Equal(t, uint64(5), start)

	appendN(t, h, 6, 8)

	sink := &memorySink{}
	result, err := session.Stop(context.Background(), sink)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, uint64(3), result.Requested)
	assert.Equal(t, uint64(0), result.Dropped)
	assert.False(t, result.Clamped)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "memory://"+result.ID, result.Location)

	rec := sink.last()
	assert.Equal(t, []float64{6, 7, 8}, rowValues(rec))
	assert.Equal(t, 1, rec.Channels)
	assert.False(t, session.IsRecording())
}

func TestRecordingClampsEvictedWindow(t *testing.T) {
	h := newHistory(t, 3)
	appendN(t, h, 1, 2)

	session := recording.NewSession(h, logger.Nop())
	require.True(t, session.Start())
	appendN(t, h, 3, 7)

	sink := &memorySink{}
	result, err := session.Stop(context.Background(), sink)
	require.NoError(t, err)

	assert.True(t, result.Clamped)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, uint64(5), result.Requested)
	assert.Equal(t, uint64(2), result.Dropped)
	assert.Equal(t, []float64{5, 6, 7}, rowValues(sink.last()))
}

func TestRecordingEmptyWindow(t *testing.T) {
	h := newHistory(t, 3)
	appendN(t, h, 1, 2)

	session := recording.NewSession(h, logger.Nop())
	require.True(t, session.Start())

	sink := &memorySink{}
	result, err := session.Stop(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Rows)
	assert.False(t, result.Clamped)
	assert.Equal(t, 1, sink.calls(), "an empty recording is still persisted")
	assert.Empty(t, sink.last().Rows())
}

func TestRecordingStartIsIdempotent(t *testing.T) {
	h := newHistory(t, 10)
	session := recording.NewSession(h, logger.Nop())

	appendN(t, h, 1, 2)
	require.True(t, session.Start())
	appendN(t, h, 3, 4)
	assert.False(t, session.Start())

	start, ok := session.StartCounter()
	assert.True(t, ok)
	assert.Equal(t, uint64(2), start)
	assert.Equal(t, recording.StateRecording, session.State())
}

func TestRecordingStopWhenIdle(t *testing.T) {
	session := recording.NewSession(newHistory(t, 10), logger.Nop())
	sink := &memorySink{}

	result, err := session.Stop(context.Background(), sink)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Zero(t, sink.calls())

	_, ok := session.StartCounter()
	assert.False(t, ok)
	assert.Equal(t, recording.StateIdle, session.State())
}

func TestRecordingSinkFailureIsReturned(t *testing.T) {
	h := newHistory(t, 10)
	session := recording.NewSession(h, logger.Nop())
	require.True(t, session.Start())
	appendN(t, h, 1, 3)

	diskFull := stderrors.New("no space left on device")
	result, err := session.Stop(context.Background(), &memorySink{err: diskFull})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, recording.ErrSinkFailed))
	assert.ErrorIs(t, err, diskFull)
	require.NotNil(t, result)
	assert.Equal(t, 3, result.Rows)
	assert.False(t, session.IsRecording())

	require.NotNil(t, result.Unsaved)
	assert.Equal(t, []float64{1, 2, 3}, rowValues(result.Unsaved))

	retry := &memorySink{}
	_, err = retry.Persist(context.Background(), result.Unsaved)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.calls())
}

func TestRecordingNilSinkKeepsRecording(t *testing.T) {
	session := recording.NewSession(newHistory(t, 10), logger.Nop())
	require.True(t, session.Start())

	_, err := session.Stop(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, recording.ErrNilSink))
	assert.True(t, session.IsRecording())
}

func TestRecordingToggle(t *testing.T) {
	h := newHistory(t, 10)
	session := recording.NewSession(h, logger.Nop())
	sink := &memorySink{}

	result, err := session.Toggle(context.Background(), sink)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.True(t, session.IsRecording())

	appendN(t, h, 1, 2)

	result, err = session.Toggle(context.Background(), sink)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Rows)
	assert.False(t, session.IsRecording())
}

func TestRecordingWhileWriterEvicts(t *testing.T) {
	h := newHistory(t, 100)
	session := recording.NewSession(h, logger.Nop())

	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; !stop.Load(); i++ {
			_, err := h.Append([]float64{float64(i), 1}, time.Now())
			if err != nil {
				return
			}
		}
	}()

	require.Eventually(t, func() bool { return h.Counter() > 500 }, time.Second, time.Millisecond)
	require.True(t, session.Start())
	start, _ := session.StartCounter()
	require.Eventually(t, func() bool { return h.Counter() > start+1000 }, 5*time.Second, time.Millisecond)

	sink := &memorySink{}
	result, err := session.Stop(context.Background(), sink)
	stop.Store(true)
	wg.Wait()
	require.NoError(t, err)

	assert.True(t, result.Clamped)
	assert.LessOrEqual(t, result.Rows, 100)

	rows := sink.last().Rows()
	require.NotEmpty(t, rows)
	assert.GreaterOrEqual(t, rows[0].Seq, start)
	for i := 1; i < len(rows); i++ {
		assert.Equal(t, rows[i-1].Seq+1, rows[i].Seq)
		assert.Len(t, rows[i].Values, 2)
	}
	assert.Equal(t, result.Requested, result.Dropped+uint64(result.Rows))
}

package history_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistory(t *testing.T, capacity int) *history.History {
	t.Helper()
	h, err := history.New(capacity)
	require.NoError(t, err)
	return h
}

func appendValues(t *testing.T, h *history.History, values ...float64) history.Sample {
	t.Helper()
	s, err := h.Append(values, time.Now())
	require.NoError(t, err)
	return s
}

func firstValues(samples []history.Sample) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		out = append(out, s.Values[0])
	}
	return out
}

func TestNewRejectsInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := history.New(capacity)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, history.ErrInvalidCapacity))
	}
}

func TestEmptyHistory(t *testing.T) {
	h := newHistory(t, 3)

	assert.Empty(t, h.Snapshot())
	assert.NotNil(t, h.Snapshot())
	assert.Empty(t, h.Last(10))
	assert.Equal(t, uint64(0), h.Counter())
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 0, h.Channels())
	assert.Equal(t, 3, h.Cap())
}

func TestAppendEvictsOldestFirst(t *testing.T) {
	h := newHistory(t, 3)

	for _, v := range []float64{1, 2, 3, 4} {
		appendValues(t, h, v)
		assert.LessOrEqual(t, h.Len(), h.Cap())
	}

	snapshot := h.Snapshot()
	assert.Equal(t, []float64{2, 3, 4}, firstValues(snapshot))
	assert.Equal(t, uint64(4), h.Counter())
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{snapshot[0].Seq, snapshot[1].Seq, snapshot[2].Seq})
}

func TestRetainsMostRecentSamples(t *testing.T) {
	h := newHistory(t, 5)

	for i := 0; i < 23; i++ {
		appendValues(t, h, float64(i), float64(-i))
		assert.LessOrEqual(t, h.Len(), 5)
		assert.Equal(t, uint64(i+1), h.Counter())
	}

	assert.Equal(t, []float64{18, 19, 20, 21, 22}, firstValues(h.Snapshot()))
	assert.Equal(t, 2, h.Channels())
}

func TestLast(t *testing.T) {
	h := newHistory(t, 4)
	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		appendValues(t, h, v)
	}

	tests := []struct {
		name string
		n    int
		want []float64
	}{
		{"zero", 0, []float64{}},
		{"negative", -3, []float64{}},
		{"one", 1, []float64{6}},
		{"two", 2, []float64{5, 6}},
		{"exact", 4, []float64{3, 4, 5, 6}},
		{"more than retained", 50, []float64{3, 4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstValues(h.Last(tt.n)))
		})
	}
}

func TestAppendRejectsChannelMismatch(t *testing.T) {
	h := newHistory(t, 4)
	appendValues(t, h, 1, 2, 3)

	_, err := h.Append([]float64{1, 2}, time.Now())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, history.ErrChannelMismatch))

	_, err = h.Append(nil, time.Now())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, history.ErrEmptySample))

	assert.Equal(t, uint64(1), h.Counter())
	assert.Equal(t, 1, h.Len())
}

func TestAppendCopiesValues(t *testing.T) {
	h := newHistory(t, 2)
	values := []float64{1, 2}
	appendValues(t, h, values...)

	buf := []float64{7, 8}
	_, err := h.Append(buf, time.Now())
	require.NoError(t, err)
	buf[0] = 99

	assert.Equal(t, []float64{7, 8}, h.Last(1)[0].Values)
}

func TestSinceWithinRetention(t *testing.T) {
	h := newHistory(t, 10)
	for i := 1; i <= 5; i++ {
		appendValues(t, h, float64(i))
	}

	start := h.Counter()
	for i := 6; i <= 8; i++ {
		appendValues(t, h, float64(i))
	}

	w := h.Since(start)
	assert.Equal(t, uint64(5), w.Start)
	assert.Equal(t, uint64(8), w.End)
	assert.Equal(t, uint64(5), w.First)
	assert.Equal(t, uint64(3), w.Requested())
	assert.Equal(t, uint64(0), w.Dropped())
	assert.False(t, w.Clamped())
	assert.Equal(t, []float64{6, 7, 8}, firstValues(w.Samples))
}

func TestSinceClampsEvictedRange(t *testing.T) {
	h := newHistory(t, 3)
	appendValues(t, h, 1)
	appendValues(t, h, 2)

	start := h.Counter()
	for i := 3; i <= 7; i++ {
		appendValues(t, h, float64(i))
	}

	w := h.Since(start)
	assert.Equal(t, uint64(2), w.Start)
	assert.Equal(t, uint64(7), w.End)
	assert.Equal(t, uint64(4), w.First)
	assert.Equal(t, uint64(5), w.Requested())
	assert.Equal(t, uint64(2), w.Dropped())
	assert.True(t, w.Clamped())
	assert.Equal(t, []float64{5, 6, 7}, firstValues(w.Samples))
}

func TestSinceEmptyWindow(t *testing.T) {
	h := newHistory(t, 3)
	appendValues(t, h, 1)

	w := h.Since(h.Counter())
	assert.Empty(t, w.Samples)
	assert.Equal(t, uint64(0), w.Requested())
	assert.False(t, w.Clamped())

	// A marker ahead of the counter yields nothing rather than panicking.
	w = h.Since(h.Counter() + 5)
	assert.Empty(t, w.Samples)
	assert.Equal(t, uint64(0), w.Requested())
}

func TestConcurrentReadersNeverSeeTornState(t *testing.T) {
	const (
		capacity = 1000
		writes   = 10000
		readers  = 10
		channels = 4
	)

	h := newHistory(t, capacity)

	var done atomic.Bool
	var violations atomic.Int64
	var wg sync.WaitGroup

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !done.Load() {
				before := h.Counter()
				samples := h.Last(50)
				if len(samples) > capacity || h.Len() > capacity {
					violations.Add(1)
				}
				for i, s := range samples {
					if len(s.Values) != channels {
						violations.Add(1)
					}
					if i > 0 && s.Seq != samples[i-1].Seq+1 {
						violations.Add(1)
					}
				}
				if len(samples) > 0 && samples[len(samples)-1].Seq+1 < before {
					violations.Add(1)
				}
			}
		}()
	}

	for i := 0; i < writes; i++ {
		v := float64(i)
		_, err := h.Append([]float64{v, v, v, v}, time.Now())
		require.NoError(t, err)
	}
	done.Store(true)
	wg.Wait()

	assert.Zero(t, violations.Load())
	assert.Equal(t, uint64(writes), h.Counter())
	assert.Equal(t, capacity, h.Len())
	assert.Equal(t, float64(writes-capacity), h.Snapshot()[0].Values[0])
}

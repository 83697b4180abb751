package history

import (
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
)

// History is a fixed-capacity ring of Samples. A single writer appends
// while any number of readers take copies; the oldest sample is evicted
// in the same critical section as the insert that overflows the ring.
type History struct {
	buf      []Sample
	head     int
	size     int
	channels int
	counter  atomic.Uint64
	mu       sync.RWMutex
}

var _ Reader = (*History)(nil)

func New(capacity int) (*History, error) {
	errFactory := errors.New()
	if capacity <= 0 {
		return nil, errFactory.WithData(ErrInvalidCapacity, capacity)
	}

	return &History{
		buf: make([]Sample, capacity),
	}, nil
}

// Append stores a new sample built from values and returns it. The first
// append fixes the channel count; later appends must match it.
func (h *History) Append(values []float64, ts time.Time) (Sample, error) {
	errFactory := errors.New()
	if len(values) == 0 {
		return Sample{}, errFactory.New(ErrEmptySample)
	}

	owned := make([]float64, len(values))
	copy(owned, values)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels == 0 {
		h.channels = len(owned)
	} else if len(owned) != h.channels {
		return Sample{}, errFactory.WithData(ErrChannelMismatch, struct {
			Expected int
			Got      int
		}{
			Expected: h.channels,
			Got:      len(owned),
		})
	}

	seq := h.counter.Load()
	sample := Sample{Seq: seq, Time: ts, Values: owned}

	capacity := len(h.buf)
	if h.size < capacity {
		h.buf[(h.head+h.size)%capacity] = sample
		h.size++
	} else {
		h.buf[h.head] = sample
		h.head = (h.head + 1) % capacity
	}

	// Published last so that a reader observing the new count and then
	// taking a snapshot always sees the sample.
	h.counter.Store(seq + 1)

	return sample, nil
}

func (h *History) Snapshot() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.copyRange(0, h.size)
}

func (h *History) Last(n int) []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 {
		return []Sample{}
	}
	if n > h.size {
		n = h.size
	}

	return h.copyRange(h.size-n, n)
}

func (h *History) Since(start uint64) Window {
	h.mu.RLock()
	defer h.mu.RUnlock()

	end := h.counter.Load()
	oldest := end - uint64(h.size)

	first := start
	if first < oldest {
		first = oldest
	}
	if first > end {
		first = end
	}

	return Window{
		Start:   start,
		End:     end,
		First:   first,
		Samples: h.copyRange(int(first-oldest), int(end-first)),
	}
}

func (h *History) Counter() uint64 {
	return h.counter.Load()
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

func (h *History) Cap() int {
	return len(h.buf)
}

func (h *History) Channels() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channels
}

// copyRange copies n samples starting offset positions after the oldest
// one. Callers must hold the lock.
func (h *History) copyRange(offset, n int) []Sample {
	out := make([]Sample, n)
	capacity := len(h.buf)
	for i := 0; i < n; i++ {
		out[i] = h.buf[(h.head+offset+i)%capacity]
	}

	return out
}

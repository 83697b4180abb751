package transport

import (
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
)

const simulatorName = "simulator"

// Simulator generates random single-digit readings on a fixed number of
// channels at a fixed rate. It stands in for a device during development.
type Simulator struct {
	channels int
	interval time.Duration
	timeout  time.Duration
	rng      *rand.Rand
	next     time.Time
	closed   atomic.Bool
}

func NewSimulator(channels int, interval, readTimeout time.Duration) *Simulator {
	return &Simulator{
		channels: channels,
		interval: interval,
		timeout:  readTimeout,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		next:     time.Now(),
	}
}

func (s *Simulator) ReadLine() (string, error) {
	if s.closed.Load() {
		return "", errors.New().New(ErrClosed)
	}

	wait := time.Until(s.next)
	if wait > s.timeout {
		time.Sleep(s.timeout)
		return "", ErrNoData
	}
	if wait > 0 {
		time.Sleep(wait)
	}

	// After a stall, resume the cadence from now instead of bursting.
	now := time.Now()
	s.next = s.next.Add(s.interval)
	if s.next.Before(now) {
		s.next = now.Add(s.interval)
	}

	fields := make([]string, s.channels)
	for i := range fields {
		fields[i] = strconv.Itoa(s.rng.Intn(10))
	}

	return strings.Join(fields, ","), nil
}

func (s *Simulator) Close() error {
	s.closed.Store(true)
	return nil
}

func (*Simulator) Name() string {
	return simulatorName
}

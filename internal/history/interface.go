package history

import "time"

// Sample is one fixed-arity record captured from the input stream.
// Values must not be modified once the sample has been appended.
type Sample struct {
	// Seq is the sample's zero-based position in the global append order.
	Seq    uint64
	Time   time.Time
	Values []float64
}

// Reader is the read-only view of a History offered to consumers such as
// the refresh loop and the recording session.
type Reader interface {
	// Snapshot returns a copy of every retained sample in arrival order.
	Snapshot() []Sample

	// Last returns a copy of the most recent n samples in arrival order.
	Last(n int) []Sample

	// Since returns the retained samples appended at or after counter value start.
	Since(start uint64) Window

	// Counter returns the number of samples ever appended.
	Counter() uint64

	// Len returns the number of retained samples.
	Len() int

	// Channels returns the established channel count, or 0 before the first append.
	Channels() int
}

// Window is a consistent extract of the samples whose Seq falls in
// [Start, End). When part of that range has already been evicted, First is
// greater than Start and Samples only covers [First, End).
type Window struct {
	Start   uint64
	End     uint64
	First   uint64
	Samples []Sample
}

// Requested is the number of samples the window asked for.
func (w Window) Requested() uint64 {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

// Dropped is the number of requested samples lost to eviction.
func (w Window) Dropped() uint64 {
	return w.Requested() - uint64(len(w.Samples))
}

// Clamped reports whether eviction narrowed the window.
func (w Window) Clamped() bool {
	return w.Dropped() > 0
}

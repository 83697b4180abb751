package monitor

import "time"

// ChannelStats summarizes one channel over the refresh window.
type ChannelStats struct {
	Min  float64
	Max  float64
	Mean float64
	Last float64
}

// Frame is what a single refresh observed. Samples is the number of
// samples summarized, at most the configured width.
type Frame struct {
	Time      time.Time
	Counter   uint64
	Samples   int
	Channels  []ChannelStats
	Recording bool
}

// Renderer consumes frames. It is called from the refresh goroutine only.
type Renderer interface {
	Render(Frame)
}

// RecordingState reports whether a recording is in progress.
type RecordingState interface {
	IsRecording() bool
}

package monitor

import "codeberg.org/mutker/serialmon/internal/logger"

// LogRenderer writes each frame as a structured log line: one info line
// with the overall state and, at debug level, one line per channel.
type LogRenderer struct {
	logger logger.Logger
}

func NewLogRenderer(log logger.Logger) *LogRenderer {
	return &LogRenderer{logger: log}
}

func (r *LogRenderer) Render(f Frame) {
	r.logger.Info().
		Uint64("counter", f.Counter).
		Int("samples", f.Samples).
		Int("channels", len(f.Channels)).
		Bool("recording", f.Recording).
		Msg("")

	for i, ch := range f.Channels {
		r.logger.Debug().
			Int("channel", i).
			Float64("min", ch.Min).
			Float64("max", ch.Max).
			Float64("mean", ch.Mean).
			Float64("last", ch.Last).
			Msg("")
	}
}

package capture

import (
	"codeberg.org/mutker/serialmon/internal/history"
	"codeberg.org/mutker/serialmon/internal/logger"
)

// Observer receives diagnostics from the capture loop. Calls are made on
// the loop goroutine and must not block.
type Observer interface {
	LineReceived(line string)
	LineRejected(line string, err error)
	SampleAppended(sample history.Sample)
}

type NopObserver struct{}

func (NopObserver) LineReceived(string) {}
func (NopObserver) LineRejected(string, error) {}
func (NopObserver) SampleAppended(history.Sample) {}

// LogObserver echoes raw lines at debug level and rejected lines as warnings.
type LogObserver struct {
	log logger.Logger
}

func NewLogObserver(log logger.Logger) *LogObserver {
	return &LogObserver{log: log}
}

func (o *LogObserver) LineReceived(line string) {
	o.log.Debug().Str("line", line).Msg("Received line")
}

func (o *LogObserver) LineRejected(line string, err error) {
	o.log.Warn().Err(err).Str("line", line).Msg("Discarded malformed line")
}

func (o *LogObserver) SampleAppended(sample history.Sample) {
	o.log.Debug().
		Uint64("seq", sample.Seq).
		Floats64("values", sample.Values).
		Msg("Sample appended")
}

// MultiObserver fans out to every observer in order.
type MultiObserver []Observer

func (m MultiObserver) LineReceived(line string) {
	for _, o := range m {
		o.LineReceived(line)
	}
}

func (m MultiObserver) LineRejected(line string, err error) {
	for _, o := range m {
		o.LineRejected(line, err)
	}
}

func (m MultiObserver) SampleAppended(sample history.Sample) {
	for _, o := range m {
		o.SampleAppended(sample)
	}
}

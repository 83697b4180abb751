package monitor

import (
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
)

const (
	defaultInterval = 500 * time.Millisecond
	defaultWidth    = 500
)

type Config struct {
	Interval time.Duration
	Width    int
}

func DefaultConfig() Config {
	return Config{
		Interval: defaultInterval,
		Width:    defaultWidth,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval.String())
	}
	if c.Width <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "width must be positive")
	}

	return nil
}

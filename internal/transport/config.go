package transport

import (
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
)

const (
	defaultBaudRate    = 115200
	defaultReadTimeout = 100 * time.Millisecond
	defaultSimChannels = 4
	defaultSimInterval = 100 * time.Millisecond
	maxLineLength      = 4096
)

type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
	Simulate    bool
	SimChannels int
	SimInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaudRate:    defaultBaudRate,
		ReadTimeout: defaultReadTimeout,
		SimChannels: defaultSimChannels,
		SimInterval: defaultSimInterval,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.ReadTimeout <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "read timeout must be positive")
	}

	if c.Simulate {
		if c.SimChannels <= 0 {
			return errFactory.WithData(ErrInvalidConfig, "simulated channel count must be positive")
		}
		if c.SimInterval <= 0 {
			return errFactory.WithData(ErrInvalidConfig, "simulated interval must be positive")
		}
		return nil
	}

	if c.Port == "" {
		return errFactory.WithData(ErrInvalidConfig, "port is required")
	}
	if c.BaudRate <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "baud rate must be positive")
	}

	return nil
}

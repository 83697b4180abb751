package transport

import (
	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/logger"
)

// Open validates cfg and opens the configured transport. Failures carry
// ErrOpenFailed and are not retried here.
func Open(cfg Config, log logger.Logger) (Transport, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrOpenFailed, err)
	}

	if cfg.Simulate {
		log.Info().
			Int("channels", cfg.SimChannels).
			Dur("interval", cfg.SimInterval).
			Msg("Using simulated device")
		return NewSimulator(cfg.SimChannels, cfg.SimInterval, cfg.ReadTimeout), nil
	}

	t, err := OpenSerial(cfg.Port, cfg.BaudRate, cfg.ReadTimeout)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("port", cfg.Port).
		Int("baudrate", cfg.BaudRate).
		Msg("Opened serial port")

	return t, nil
}

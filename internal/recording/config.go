package recording

import (
	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/logger"
)

const (
	// File system permissions and paths
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
	defaultSaveDir  = "./data"
	defaultDBPath   = "./data/recordings.db"

	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
)

type Config struct {
	Sink    string
	SaveDir string
	DBPath  string
}

func DefaultConfig() Config {
	return Config{
		Sink:    SinkCSV,
		SaveDir: defaultSaveDir,
		DBPath:  defaultDBPath,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch c.Sink {
	case SinkCSV:
		if c.SaveDir == "" {
			return errFactory.New(ErrInvalidDir)
		}
	case SinkSQLite:
		if c.DBPath == "" {
			return errFactory.New(ErrInvalidDBPath)
		}
	default:
		return errFactory.WithData(ErrUnknownSink, c.Sink)
	}

	return nil
}

// NewSink builds the sink selected by cfg.
func NewSink(cfg Config, log logger.Logger) (Sink, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if cfg.Sink == SinkSQLite {
		return NewSQLiteSink(cfg.DBPath, log)
	}

	return NewCSVSink(cfg.SaveDir, log)
}

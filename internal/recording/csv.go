package recording

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/logger"
)

const (
	csvFilePrefix    = "data"
	csvTimestampFmt  = "20060102150405"
	maxNameConflicts = 1000
)

// CSVSink writes each recording to its own comma-separated file named after
// the stop time, one row per sample and one column per channel.
type CSVSink struct {
	dir    string
	logger logger.Logger
}

func NewCSVSink(dir string, log logger.Logger) (*CSVSink, error) {
	if dir == "" {
		return nil, errors.New().New(ErrInvalidDir)
	}

	return &CSVSink{
		dir:    dir,
		logger: log,
	}, nil
}

func (s *CSVSink) Persist(ctx context.Context, rec *Recording) (string, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return "", errFactory.Wrap(errors.ErrCanceled, err)
	}

	if _, err := os.Stat(s.dir); err != nil {
		if err := os.MkdirAll(s.dir, defaultDirPerm); err != nil {
			return "", errFactory.WithData(ErrStorageInit, struct {
				Phase string
				Path  string
				Error string
			}{
				Phase: "create_directory",
				Path:  s.dir,
				Error: err.Error(),
			})
		}
		s.logger.Info().Str("dir", s.dir).Msg("Created directory")
	}

	f, path, err := s.create(rec)
	if err != nil {
		return "", err
	}

	if err := writeRows(ctx, f, rec); err != nil {
		f.Close()
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("path", path).Msg("Failed to remove partial recording")
		}
		return "", errFactory.WithData(ErrStorageAccess, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	if err := f.Close(); err != nil {
		return "", errFactory.Wrap(ErrStorageClose, err)
	}

	s.logger.Debug().Str("path", path).Int("rows", len(rec.Rows())).Msg("Wrote recording")

	return path, nil
}

// create opens a fresh file, adding a numeric suffix when a recording with
// the same timestamp already exists.
func (s *CSVSink) create(rec *Recording) (*os.File, string, error) {
	errFactory := errors.New()
	base := csvFilePrefix + rec.StoppedAt.Format(csvTimestampFmt)

	for i := 0; i < maxNameConflicts; i++ {
		name := base + ".csv"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.csv", base, i)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, defaultFilePerm)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", errFactory.WithData(ErrStorageAccess, struct {
				Path  string
				Error string
			}{
				Path:  path,
				Error: err.Error(),
			})
		}
	}

	return nil, "", errFactory.WithData(ErrStorageAccess, "too many recordings named "+base)
}

// writeRows stops between rows once ctx is done.
func writeRows(ctx context.Context, f *os.File, rec *Recording) error {
	w := csv.NewWriter(f)

	record := make([]string, rec.Channels)
	for _, sample := range rec.Rows() {
		if err := ctx.Err(); err != nil {
			return err
		}
		record = record[:0]
		for _, v := range sample.Values {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func (*CSVSink) Close() error {
	return nil
}

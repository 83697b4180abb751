package recording

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink stores every recording in one database: a row in recordings
// per session and one samples row per channel value.
type SQLiteSink struct {
	db     *sql.DB
	path   string
	logger logger.Logger
	mu     sync.Mutex
}

func NewSQLiteSink(dbPath string, log logger.Logger) (*SQLiteSink, error) {
	errFactory := errors.New()

	if dbPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  dbPath,
			Error: err.Error(),
		})
	}

	dsn := dbPath + "?_journal=WAL&_foreign_keys=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, dbPath, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", dbPath).
		Int("schema_version", SchemaVersion).
		Msg("Recording database initialized")

	return &SQLiteSink{
		db:     db,
		path:   dbPath,
		logger: log,
	}, nil
}

func (s *SQLiteSink) Persist(ctx context.Context, rec *Recording) (string, error) {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errFactory.Wrap(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				s.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
		}
	}()

	window := rec.Window
	if _, err := tx.ExecContext(ctx, insertRecordingSQL,
		rec.ID,
		rec.StartedAt.UnixNano(),
		rec.StoppedAt.UnixNano(),
		rec.Channels,
		int64(window.Start),
		int64(window.End),
		int64(window.First),
		len(window.Samples),
		boolToInt(window.Clamped()),
	); err != nil {
		return "", errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSampleSQL)
	if err != nil {
		return "", errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, sample := range window.Samples {
		ts := sample.Time.UnixNano()
		for channel, value := range sample.Values {
			if _, err := stmt.ExecContext(ctx, rec.ID, int64(sample.Seq), ts, channel, value); err != nil {
				return "", errFactory.Wrap(ErrTransactionFailed, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	s.logger.Debug().
		Str("recording_id", rec.ID).
		Int("rows", len(window.Samples)).
		Msg("Flushed recording to database")

	return s.path + "#" + rec.ID, nil
}

// Load returns the values of a stored recording, one slice per sample in
// ingestion order.
func (s *SQLiteSink) Load(ctx context.Context, id string) ([][]float64, error) {
	errFactory := errors.New()

	rows, err := s.db.QueryContext(ctx, selectSamplesSQL, id)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var (
		out     [][]float64
		lastSeq int64 = -1
	)
	for rows.Next() {
		var (
			seq     int64
			channel int
			value   float64
		)
		if err := rows.Scan(&seq, &channel, &value); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		if seq != lastSeq {
			out = append(out, nil)
			lastSeq = seq
		}
		out[len(out)-1] = append(out[len(out)-1], value)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return out, nil
}

func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := s.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	s.logger.Info().Msg("Recording database closed")

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

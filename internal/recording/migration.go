package recording

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/logger"
)

const (
	archiveDirName   = "backups"
	archiveTimestamp = "20060102T150405Z"

	phaseArchiveDir  = "archive_dir"
	phaseArchive     = "archive_recordings"
	phaseResetTables = "reset_tables"
	phaseCommitReset = "commit_reset"
)

// Children first, so the samples foreign key never blocks a drop.
var recordingTables = []string{"samples", "recordings", "schema_versions"}

func migrationError(phase string, err error) error {
	return errors.New().WithData(ErrSchemaMigrationFailed, struct {
		Phase string
		Error string
	}{
		Phase: phase,
		Error: err.Error(),
	})
}

// archiveRecordings copies the whole database next to it as
// backups/recordings_v<version>_<time>.db and reports how many recordings
// the copy holds.
func archiveRecordings(db *sql.DB, dbPath string, version int) (string, int, error) {
	dir := filepath.Join(filepath.Dir(dbPath), archiveDirName)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return "", 0, migrationError(phaseArchiveDir, err)
	}

	archive := filepath.Join(dir, fmt.Sprintf("recordings_v%d_%s.db",
		version, time.Now().UTC().Format(archiveTimestamp)))

	// Not allowed inside a transaction.
	if _, err := db.Exec("VACUUM INTO ?", archive); err != nil {
		return "", 0, migrationError(phaseArchive, err)
	}

	count := 0
	if ok, err := TableExists(db, "recordings"); err == nil && ok {
		if err := db.QueryRow("SELECT COUNT(*) FROM recordings").Scan(&count); err != nil {
			return archive, 0, migrationError(phaseArchive, err)
		}
	}

	return archive, count, nil
}

// ValidateAndUpdateSchema brings the database to SchemaVersion. Recordings
// stored under any other version are archived and the tables recreated
// empty; sample rows are never converted in place.
func ValidateAndUpdateSchema(db *sql.DB, dbPath string, log logger.Logger) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return errors.New().Wrap(ErrSchemaValidationFailed, err)
	}

	if version == SchemaVersion {
		log.Debug().Int("version", version).Msg("Recording schema is current")
		return nil
	}

	if version != 0 {
		archive, count, err := archiveRecordings(db, dbPath, version)
		if err != nil {
			return err
		}
		log.Warn().
			Int("from_version", version).
			Int("to_version", SchemaVersion).
			Int("recordings", count).
			Str("archive", archive).
			Msg("Archived recordings stored under an old schema")
	}

	if err := resetRecordingTables(db, log); err != nil {
		return err
	}

	return InitSchema(db, log)
}

func resetRecordingTables(db *sql.DB, log logger.Logger) error {
	tx, err := db.Begin()
	if err != nil {
		return migrationError(phaseResetTables, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Debug().Err(err).Msg("Failed to roll back table reset")
		}
	}()

	for _, table := range recordingTables {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return migrationError(phaseResetTables, fmt.Errorf("%s: %w", table, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return migrationError(phaseCommitReset, err)
	}
	committed = true

	return nil
}

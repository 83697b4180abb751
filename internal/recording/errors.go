package recording

import "codeberg.org/mutker/serialmon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("recording_invalid_db_path")
	ErrInvalidDir    = errors.ErrorCode("recording_invalid_dir")
	ErrUnknownSink   = errors.ErrorCode("recording_unknown_sink")

	// Session Errors
	ErrSinkFailed = errors.ErrorCode("recording_sink_failed")
	ErrNilSink    = errors.ErrorCode("recording_nil_sink")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("recording_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("recording_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("recording_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("recording_transaction_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("recording_storage_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed
)

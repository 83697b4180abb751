package transport

import "codeberg.org/mutker/serialmon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("transport_invalid_config")

	// Lifecycle Errors
	ErrOpenFailed  = errors.ErrorCode("transport_open_failed")
	ErrCloseFailed = errors.ErrorCode("transport_close_failed")
	ErrClosed      = errors.ErrorCode("transport_closed")

	// Read Errors
	ErrReadFailed = errors.ErrorCode("transport_read_failed")
	ErrNoDataCode = errors.ErrorCode("transport_no_data")
)

// ErrNoData is returned by ReadLine when the poll interval elapsed without
// a complete line. It is not a failure.
var ErrNoData error = errors.New().New(ErrNoDataCode)

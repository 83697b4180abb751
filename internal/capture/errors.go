package capture

import "codeberg.org/mutker/serialmon/internal/errors"

const (
	// Record Errors
	ErrRecordParse = errors.ErrorCode("capture_record_parse")

	// Loop Errors
	ErrTransportFatal  = errors.ErrorCode("capture_transport_fatal")
	ErrHistoryRejected = errors.ErrorCode("capture_history_rejected")
	ErrAlreadyStarted  = errors.ErrorCode("capture_already_started")
	ErrStopTimeout     = errors.ErrorCode("capture_stop_timeout")
)

package monitor

import "codeberg.org/mutker/serialmon/internal/errors"

const (
	ErrInvalidConfig = errors.ErrorCode("monitor_invalid_config")
	ErrNilHistory    = errors.ErrorCode("monitor_nil_history")
	ErrAlreadyRun    = errors.ErrorCode("monitor_already_running")
)

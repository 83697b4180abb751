package history

import "codeberg.org/mutker/serialmon/internal/errors"

const (
	// Construction Errors
	ErrInvalidCapacity = errors.ErrorCode("history_invalid_capacity")

	// Append Errors
	ErrChannelMismatch = errors.ErrorCode("history_channel_mismatch")
	ErrEmptySample     = errors.ErrorCode("history_empty_sample")
)

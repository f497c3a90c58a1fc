package events

import "errors"

// Sentinel errors for the events service layer.
var (
	ErrEmptyBatch     = errors.New("no valid events in batch")
	ErrInvalidQuery   = errors.New("invalid report query")
	ErrUnboundedRange = errors.New("comparison needs both start and end")
	ErrNotFound       = errors.New("no events found")
)

package ingest

import "errors"

var (
	// ErrNoHeader is returned when no row of an export looks like a header.
	ErrNoHeader = errors.New("no recognised header row")
	// ErrMissingColumn is returned when a header lacks a required column.
	ErrMissingColumn = errors.New("required column missing")
	// ErrBadPayload is returned for webhook bodies that are not an event array.
	ErrBadPayload = errors.New("malformed webhook payload")
	// ErrBadSignature is returned when a signed webhook fails verification.
	ErrBadSignature = errors.New("webhook signature mismatch")
)

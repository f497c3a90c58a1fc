package analytics

import "errors"

// ErrInvalidEvent is returned by the normalizer for records that cannot
// become a domain.Event. The wrapped message names the offending field.
var ErrInvalidEvent = errors.New("invalid event")

// Package analytics is the event aggregation and scoring engine.
//
// Every function in this package is a pure transform over an in-memory
// []domain.Event: no I/O, no logging, no shared mutable state. Callers
// fetch and normalize events, pick the time window, and serialize the
// aggregate records these functions return. Concurrent calls over
// independent slices are safe.
//
// Rates are percentages in the range 0..100 and resolve to 0 whenever the
// denominator is 0. Empty input always yields empty, non-nil results.
package analytics

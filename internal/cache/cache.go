// Package cache stores serialized report responses keyed by the query that
// produced them. Ingestion invalidates the whole cache since any new event
// can change any report.
package cache

import (
	"context"
	"net/url"
	"strings"
)

// ReportCache is implemented by the Redis and in-memory caches.
type ReportCache interface {
	// Get decodes the cached value for key into dst and reports whether
	// it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores value under key.
	Set(ctx context.Context, key string, value any) error
	// Invalidate drops every cached report.
	Invalidate(ctx context.Context) error
}

// Key builds a cache key from a report name and its query parameters.
// Parameters are sorted so equivalent queries share a key; empty values
// are dropped.
func Key(report string, params url.Values) string {
	clean := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			if v = strings.TrimSpace(v); v != "" {
				clean.Add(k, v)
			}
		}
	}
	if len(clean) == 0 {
		return report
	}
	return report + "?" + clean.Encode()
}

// Nop is a ReportCache that never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any) error         { return nil }
func (Nop) Invalidate(context.Context) error               { return nil }

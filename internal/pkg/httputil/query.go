package httputil

import (
	"net/http"
	"strconv"
	"strings"
)

// QueryInt reads an integer query parameter, returning def when it is
// absent or malformed.
func QueryInt(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// QueryFloat reads a float query parameter, returning def when it is
// absent or malformed.
func QueryFloat(r *http.Request, key string, def float64) float64 {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// QueryBool reports whether a query parameter is set to a true value.
func QueryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

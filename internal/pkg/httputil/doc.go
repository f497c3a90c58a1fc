// Package httputil holds the JSON and CSV response helpers shared by every
// handler, plus query-string readers. Handlers use these instead of raw
// http.ResponseWriter calls so error envelopes and logging stay uniform.
package httputil

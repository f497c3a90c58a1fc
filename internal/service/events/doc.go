// Package events implements ingestion and reporting over the SendGrid
// event store.
//
// Ingestion deduplicates each batch, writes it through the Repository and
// invalidates the report cache. Reporting loads the events a view needs,
// hands them to the analytics engine and caches the result keyed by the
// query. The service never imports net/http or database/sql; storage lives
// behind Repository and transport in internal/api.
package events

// Package ingest turns SendGrid event data into raw records for the events
// service. It reads CSV activity exports, decodes Event Webhook batches and
// imports exports dropped into an S3 bucket.
package ingest

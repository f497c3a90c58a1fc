// Package domain defines the core types for the SendGrid deliverability
// analytics service.
//
// Types in this package are pure value objects with no behavior beyond
// small classification helpers, no database dependencies, and no HTTP
// concerns. They are the shared language between the analytics engine,
// the ingestion collaborators, services, and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Constants and enums belong here
package domain

// Package suppression maintains the list of addresses that should no longer
// be mailed. Entries come from the bounce detector (critical warnings),
// from spam reports and unsubscribes seen on the event webhook, and from
// manual admin actions.
//
// The service layer depends on the Repository interface defined in
// repository.go and never imports net/http or database/sql directly.
package suppression

// Package suppression implements the per-organization suppression list.
//
// This is the single source of truth for whether an address may receive
// mail. Entries flow in from provider webhooks (bounces, complaints),
// unsubscribe links, and manual admin actions, and are checked once per
// send batch before any provider call.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package suppression

// Package campaign implements campaign lifecycle management.
//
// A campaign moves strictly forward through draft, generating, ready,
// sending and sent. The service owns the two user-triggered edges
// (draft to generating, ready to sending): it guards the current status,
// checks quota for sends, flips the status with a compare-and-set, and
// enqueues the first batch job. The remaining edges are taken by the
// pipeline orchestrator when a phase runs out of work.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package campaign

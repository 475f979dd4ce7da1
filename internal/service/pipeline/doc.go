// Package pipeline runs the campaign batch loops.
//
// Each invocation handles one bounded batch for one campaign: load up to N
// items in the phase's source status, process them concurrently, re-count
// what is left from the store, and either enqueue the next batch or move
// the campaign to the phase's terminal status. Completion is always derived
// from persisted item state, so a crashed or retried invocation re-observes
// the same condition and is safe to repeat.
//
// Invocations are driven by jobs from the campaign_jobs queue (see
// internal/worker). The follow-up job of batch seq has idempotency key
// "<phase>:<campaign>:<seq+1>", so a retried batch re-enqueueing the same
// follow-up is a no-op.
package pipeline

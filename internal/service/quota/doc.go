// Package quota implements the per-organization monthly send ledger.
//
// Every organization has one record holding a monthly ceiling, the count
// used in the current cycle, and the instant the cycle resets. Records are
// created lazily with the default ceiling and reset either on access (when
// the reset instant has passed) or by the scheduled sweep in ResetAll.
//
// Usage increments are a single additive statement in the repository so
// concurrent batches never lose updates. The ledger is checked before each
// send batch, not per send, so usage can overshoot by up to one batch.
package quota

// Package pipeline runs a batch of items through a per-item task, isolates
// each item's failure, merges the survivors into a single artifact, and
// streams ordered progress events to the caller.
//
// A run owns a private workspace keyed by a run token. The workspace is
// released by the janitor on every exit path, including cancellation and
// aggregation failure. Per-item failures never abort the batch; only a run
// where nothing succeeded, or where the merge step failed, ends in error.
package pipeline

// Package notifications pushes run outcomes to ntfy.
//
// The service implements pipeline.Recorder and is chained next to the run
// store, so every flow that records its runs also notifies. When no topic is
// configured a no-op implementation is returned.
package notifications

// Package api exposes the storyvox pipelines over HTTP.
//
// JSON endpoints answer with {"success": bool, ...} bodies. Long-running
// pipelines (audio merge, YouTube ingestion, image batches) are admitted
// through a bounded worker pool; a saturated pool answers 503 before any
// stream is opened. Streaming endpoints write newline-delimited JSON events
// with the application/x-ndjson content type.
package api

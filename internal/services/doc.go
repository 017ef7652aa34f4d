// Package services defines shared utilities consumed by the pipeline
// executors and the external integrations under it.
//
// Key responsibilities:
//   - Context helpers that stamp run tokens, item positions, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (validation, unavailable, external) uniform, and the
//     HTTPStatus mapping the API uses to report them.
//
// Integrations live in subpackages (llm, tts, replicate, whisperx, ytdlp,
// ffmpeg) and reach their tools through internal/gateway.
package services

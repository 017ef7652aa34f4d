// Package whisperx runs WhisperX speech-to-text over downloaded audio.
//
// Transcription is the fallback path of YouTube ingestion, used only when
// the video has no downloadable English captions. Invocations go through the
// gateway so they share its time limit, tool logs, and failure
// classification. A run that succeeds but yields no text is reported with
// the NoTranscription placeholder rather than as an error.
package whisperx

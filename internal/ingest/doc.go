// Package ingest implements YouTube audio ingestion with a two-tier
// transcript fallback: the video's English automatic captions when yt-dlp can
// fetch them, otherwise a WhisperX transcription of the downloaded audio.
//
// The audio file is the primary deliverable. A transcription failure is
// attached to the result as TranscriptionFailed and never discards the
// downloaded audio.
package ingest

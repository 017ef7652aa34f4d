// Package deps reports whether the external binaries the pipelines shell out
// to (ffmpeg, yt-dlp, whisperx) can be resolved on PATH.
package deps

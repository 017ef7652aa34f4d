// Package gateway is the uniform boundary for invoking external binaries
// (ffmpeg, yt-dlp, whisperx) and remote services (speech synthesis, content
// and image generation). Every failure comes back as a *gateway.Error whose
// Kind separates tools that ran and failed from tools that could not be
// reached. The gateway applies optional per-operation timeouts and writes tool
// logs, but never retries.
package gateway

// Package ytdlp wraps the yt-dlp command line tool for title lookup, audio
// extraction, and automatic caption retrieval.
package ytdlp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"storyvox/internal/gateway"
)

// DefaultBinary is the yt-dlp executable looked up on PATH.
const DefaultBinary = "yt-dlp"

// Client invokes yt-dlp through the gateway.
type Client struct {
	binary string
	gw     *gateway.Gateway
}

// New builds a Client.
func New(binary string, gw *gateway.Gateway) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if gw == nil {
		gw = gateway.New()
	}
	return &Client{binary: binary, gw: gw}
}

// Binary returns the configured executable.
func (c *Client) Binary() string { return c.binary }

// Title returns the video title as yt-dlp reports it.
func (c *Client) Title(ctx context.Context, url string) (string, error) {
	out, err := c.gw.Exec(ctx, gateway.OpFetch, c.binary, "--get-filename", "-o", "%(title)s", url)
	if err != nil {
		return "", fmt.Errorf("yt-dlp title: %w", err)
	}
	return strings.TrimSpace(string(out.Stdout)), nil
}

// DownloadAudio extracts the audio track of url as mp3 into dest.
func (c *Client) DownloadAudio(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("yt-dlp download: ensure output dir: %w", err)
	}
	if _, err := c.gw.Exec(ctx, gateway.OpDownload, c.binary, "-x", "--audio-format", "mp3", "-o", dest, url); err != nil {
		return fmt.Errorf("yt-dlp download: %w", err)
	}
	return nil
}

// FetchCaptions asks yt-dlp for English automatic captions in json3 format,
// writing them into dir. It returns the caption files written, sorted by
// name; an empty slice means the video has none.
func (c *Client) FetchCaptions(ctx context.Context, url, dir string) ([]string, error) {
	args := []string{
		"--skip-download",
		"--write-auto-subs",
		"--sub-langs", "en.*",
		"--sub-format", "json3",
		"-o", filepath.Join(dir, "%(id)s"),
		url,
	}
	if _, err := c.gw.Exec(ctx, gateway.OpTranscript, c.binary, args...); err != nil {
		return nil, fmt.Errorf("yt-dlp captions: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json3"))
	if err != nil {
		return nil, fmt.Errorf("yt-dlp captions: %w", err)
	}
	kept := files[:0]
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && info.Size() > 0 {
			kept = append(kept, f)
		}
	}
	sort.Strings(kept)
	return kept, nil
}

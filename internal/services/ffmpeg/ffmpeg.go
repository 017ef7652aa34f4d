// Package ffmpeg wraps the ffmpeg concat demuxer used to merge per-section
// audio into one file.
package ffmpeg

import (
	"context"
	"fmt"
	"strings"

	"storyvox/internal/gateway"
)

// DefaultBinary is the ffmpeg executable looked up on PATH.
const DefaultBinary = "ffmpeg"

// Concatenator merges files listed in a concat manifest with stream copy.
type Concatenator struct {
	binary string
	gw     *gateway.Gateway
}

// New builds a Concatenator.
func New(binary string, gw *gateway.Gateway) *Concatenator {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if gw == nil {
		gw = gateway.New()
	}
	return &Concatenator{binary: binary, gw: gw}
}

// Binary returns the configured executable.
func (c *Concatenator) Binary() string { return c.binary }

// Concat joins the inputs listed in manifestPath into outputPath without
// re-encoding.
func (c *Concatenator) Concat(ctx context.Context, manifestPath, outputPath string) error {
	if _, err := c.gw.Exec(ctx, gateway.OpConcatenation, c.binary, ConcatArgs(manifestPath, outputPath)...); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}

// ConcatArgs builds the ffmpeg argument list for a concat-demuxer merge.
func ConcatArgs(manifestPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		outputPath,
	}
}

// Manifest renders a concat demuxer list, one `file '<path>'` line per input
// in the given order. Single quotes inside paths are escaped the way the
// demuxer expects.
func Manifest(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

package whisperx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"storyvox/internal/gateway"
)

// Service provides WhisperX transcription through the external tool gateway.
type Service struct {
	cfg Config
	gw  *gateway.Gateway
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, gw *gateway.Gateway) *Service {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if gw == nil {
		gw = gateway.New()
	}
	return &Service{cfg: cfg, gw: gw}
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

// Binary returns the configured executable.
func (s *Service) Binary() string {
	return s.cfg.Binary
}

// TranscribeResult contains the result of a transcription.
type TranscribeResult struct {
	// Text is the plain text transcription, or NoTranscription when empty.
	Text string
	// TextPath is the .txt file whisperx wrote, when it wrote one.
	TextPath string
}

// Empty reports whether whisperx produced no usable text.
func (r TranscribeResult) Empty() bool {
	return r.Text == NoTranscription
}

// TranscribeFile transcribes an audio file. outputDir is where WhisperX writes
// its text output; it defaults to the directory of source.
func (s *Service) TranscribeFile(ctx context.Context, source, outputDir string) (TranscribeResult, error) {
	var result TranscribeResult

	if strings.TrimSpace(source) == "" {
		return result, fmt.Errorf("transcribe: source path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	out, err := s.gw.Exec(ctx, gateway.OpTranscription, s.cfg.Binary, s.buildArgs(source, outputDir)...)
	if err != nil {
		return result, fmt.Errorf("whisperx: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	textPath := filepath.Join(outputDir, baseName+"."+OutputFormat)
	text, readErr := os.ReadFile(textPath)
	switch {
	case readErr == nil:
		result.TextPath = textPath
		result.Text = strings.TrimSpace(string(text))
	case errors.Is(readErr, fs.ErrNotExist):
		result.Text = strings.TrimSpace(string(out.Stdout))
	default:
		return result, fmt.Errorf("whisperx: read transcript: %w", readErr)
	}
	if result.Text == "" {
		result.Text = NoTranscription
	}
	return result, nil
}

func (s *Service) buildArgs(source, outputDir string) []string {
	return []string{
		source,
		"--model", s.cfg.Model,
		"--output_format", OutputFormat,
		"--output_dir", outputDir,
	}
}

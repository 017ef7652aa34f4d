package pipeline

import (
	"context"
	"fmt"
	"strings"

	"storyvox/internal/workspace"
)

// Synthesizer turns text into encoded audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// SpeechTask synthesizes one text section into a per-item audio file inside
// the run workspace. Only one item's audio is held in memory at a time.
type SpeechTask struct {
	synth        Synthesizer
	defaultVoice string
	format       string
}

// NewSpeechTask builds the per-item speech task.
func NewSpeechTask(synth Synthesizer, defaultVoice, format string) *SpeechTask {
	if strings.TrimSpace(format) == "" {
		format = "wav"
	}
	return &SpeechTask{synth: synth, defaultVoice: defaultVoice, format: format}
}

// Run implements Task.
func (t *SpeechTask) Run(ctx context.Context, ws *workspace.Workspace, item Item) (string, error) {
	text := strings.TrimSpace(item.Text)
	if text == "" {
		return "", fmt.Errorf("section %d has no text", item.Index+1)
	}
	voice := strings.TrimSpace(item.Voice)
	if voice == "" {
		voice = t.defaultVoice
	}
	audio, err := t.synth.Synthesize(ctx, text, voice)
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("synthesis returned no audio for section %d", item.Index+1)
	}
	path := ws.ItemPath(item.Index, t.format)
	if err := ws.WriteFile(path, audio); err != nil {
		return "", fmt.Errorf("write section audio: %w", err)
	}
	return path, nil
}

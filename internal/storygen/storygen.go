package storygen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storyvox/internal/services"
	"storyvox/internal/services/llm"
)

const (
	creativeTemperature = 0.8
	preciseTemperature  = 0.3
	noContext           = "No context provided"
)

// Completer issues one chat completion and returns the reply text.
type Completer interface {
	CompleteText(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// Scene is one narration or dialogue block of a story script.
type Scene struct {
	Type      string `json:"type"`
	Character string `json:"character,omitempty"`
	Text      string `json:"text"`
}

// Script is a story converted into scenes.
type Script struct {
	Scenes []Scene `json:"scenes"`
}

// DialogLine is one turn of a two-host podcast script.
type DialogLine struct {
	Host string `json:"host"`
	Text string `json:"text"`
}

// Section is the text of one story section, keyed by the caller's id.
type Section struct {
	ID   any    `json:"id"`
	Text string `json:"text"`
}

// ErrScriptFormat marks model output that could not be parsed into a script.
var ErrScriptFormat = errors.New("failed to parse script format")

// Generator produces stories, scripts, and prompts through an LLM.
type Generator struct {
	llm Completer
}

// New builds a Generator.
func New(llm Completer) *Generator {
	return &Generator{llm: llm}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return services.Wrap(services.ErrValidation, "storygen", field, field+" is required", nil)
	}
	return nil
}

// Story writes a short story of about 200 words on theme.
func (g *Generator) Story(ctx context.Context, theme string) (string, error) {
	if err := required("theme", theme); err != nil {
		return "", err
	}
	return g.llm.CompleteText(ctx, "", fmt.Sprintf(storyPrompt, strings.TrimSpace(theme)), creativeTemperature)
}

// Script converts a story into narration and dialogue scenes.
func (g *Generator) Script(ctx context.Context, story string) (Script, error) {
	if err := required("story", story); err != nil {
		return Script{}, err
	}
	raw, err := g.llm.CompleteText(ctx, "", fmt.Sprintf(scriptPrompt, story), preciseTemperature)
	if err != nil {
		return Script{}, err
	}
	return ParseScript(raw)
}

// ParseScript extracts a Script from free-form model output. Asterisks are
// stripped from scene text and character names.
func ParseScript(raw string) (Script, error) {
	var payload struct {
		Scenes *[]Scene `json:"scenes"`
	}
	if err := llm.DecodeLLMJSON(raw, &payload); err != nil {
		return Script{}, fmt.Errorf("%w: %w", ErrScriptFormat, err)
	}
	if payload.Scenes == nil {
		return Script{}, fmt.Errorf("%w: invalid script structure", ErrScriptFormat)
	}
	script := Script{Scenes: make([]Scene, 0, len(*payload.Scenes))}
	for _, scene := range *payload.Scenes {
		scene.Text = strings.ReplaceAll(scene.Text, "*", "")
		scene.Character = strings.ReplaceAll(scene.Character, "*", "")
		script.Scenes = append(script.Scenes, scene)
	}
	return script, nil
}

// PodcastOutline drafts discussion content for a two-host podcast on topic.
func (g *Generator) PodcastOutline(ctx context.Context, topic string) (string, error) {
	if err := required("topic", topic); err != nil {
		return "", err
	}
	return g.llm.CompleteText(ctx, "", fmt.Sprintf(podcastPrompt, strings.TrimSpace(topic)), creativeTemperature)
}

// PodcastScript converts content into host A/B dialogue.
func (g *Generator) PodcastScript(ctx context.Context, content string) ([]DialogLine, error) {
	if err := required("content", content); err != nil {
		return nil, err
	}
	raw, err := g.llm.CompleteText(ctx, "", fmt.Sprintf(podcastScriptPrompt, content), preciseTemperature)
	if err != nil {
		return nil, err
	}
	return ParsePodcastScript(raw)
}

// ParsePodcastScript extracts dialogue lines from model output.
func ParsePodcastScript(raw string) ([]DialogLine, error) {
	var lines []DialogLine
	if err := llm.DecodeLLMJSON(raw, &lines); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptFormat, err)
	}
	return lines, nil
}

// ImagePrompt writes an image-generation prompt for one scene, keeping it
// consistent with storyContext when one is given.
func (g *Generator) ImagePrompt(ctx context.Context, text, storyContext string) (string, error) {
	if err := required("text", text); err != nil {
		return "", err
	}
	if strings.TrimSpace(storyContext) == "" {
		storyContext = noContext
	}
	out, err := g.llm.CompleteText(ctx, imagePromptSystem, fmt.Sprintf(imagePromptUser, storyContext, text), creativeTemperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// StoryContext summarizes characters, settings, and themes across sections.
func (g *Generator) StoryContext(ctx context.Context, sections []Section) (string, error) {
	texts := make([]string, 0, len(sections))
	for _, s := range sections {
		if t := strings.TrimSpace(s.Text); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return "", services.Wrap(services.ErrValidation, "storygen", "context", "no section text", nil)
	}
	return g.llm.CompleteText(ctx, "", fmt.Sprintf(contextPrompt, strings.Join(texts, "\n\n")), preciseTemperature)
}

// TranslatePodcast renders a podcast script in Chinese, keeping host labels.
func (g *Generator) TranslatePodcast(ctx context.Context, script string) (string, error) {
	if err := required("script", script); err != nil {
		return "", err
	}
	return g.llm.CompleteText(ctx, "", fmt.Sprintf(translatePodcastPrompt, script), preciseTemperature)
}

// TranslateStoryScript renders a story script in Chinese, keeping scene labels.
func (g *Generator) TranslateStoryScript(ctx context.Context, script string) (string, error) {
	if err := required("script", script); err != nil {
		return "", err
	}
	return g.llm.CompleteText(ctx, "", fmt.Sprintf(translateStoryPrompt, script), preciseTemperature)
}

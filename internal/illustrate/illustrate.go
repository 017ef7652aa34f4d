package illustrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"storyvox/internal/gateway"
	"storyvox/internal/logging"
	"storyvox/internal/pipeline"
	"storyvox/internal/services"
	"storyvox/internal/storygen"
	"storyvox/internal/workspace"
)

const (
	statusAnalyzing  = "Analyzing story context..."
	statusPrompts    = "Generating prompts..."
	statusImages     = "Generating images..."
	completedMessage = "All images generated successfully"
)

// Prompter derives the shared story context and a per-section image prompt.
type Prompter interface {
	StoryContext(ctx context.Context, sections []storygen.Section) (string, error)
	ImagePrompt(ctx context.Context, text, storyContext string) (string, error)
}

// ImageGenerator renders one prompt and returns the image URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, seed int) (string, error)
}

// Options configures a Generator.
type Options struct {
	Seed              int
	RequestsPerMinute int
	Logger            *slog.Logger
	Recorder          pipeline.Recorder
	Clock             func() time.Time
}

// Image is the outcome for one section.
type Image struct {
	SectionID any
	Prompt    string
	URL       string
	Err       error
}

// Summary lists every section outcome in input order.
type Summary struct {
	RunID   string
	Context string
	Images  []Image
}

// Generated counts sections that produced an image.
func (s Summary) Generated() int {
	n := 0
	for _, img := range s.Images {
		if img.Err == nil {
			n++
		}
	}
	return n
}

// Generator illustrates a story section by section.
type Generator struct {
	prompts Prompter
	images  ImageGenerator
	limiter *rate.Limiter
	opts    Options
	logger  *slog.Logger
}

// New builds a Generator. Image requests are paced at RequestsPerMinute;
// zero disables pacing.
func New(prompts Prompter, images ImageGenerator, opts Options) *Generator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	return &Generator{
		prompts: prompts,
		images:  images,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "illustrate"),
	}
}

// GenerateAll analyzes the story, writes one prompt per section, and renders
// each prompt. Section failures are reported as section_error events and do
// not stop the batch. Failing to analyze the story ends the stream with an
// error event.
func (g *Generator) GenerateAll(ctx context.Context, sections []storygen.Section, em pipeline.Emitter) (Summary, error) {
	if len(sections) == 0 {
		return Summary{}, services.Wrap(services.ErrValidation, "illustrate", "generate", "no sections provided", nil)
	}
	if em == nil {
		em = pipeline.Discard
	}
	started := g.opts.Clock().UTC()
	token := workspace.NewRunToken(started)
	ctx = services.WithRunID(ctx, token)
	logger := logging.WithContext(ctx, g.logger)
	summary := Summary{RunID: token, Images: make([]Image, len(sections))}
	g.recordStart(ctx, logger, token, len(sections), started)

	em.Emit(pipeline.StatusEvent(statusAnalyzing))
	storyContext, err := g.prompts.StoryContext(ctx, sections)
	if err != nil {
		err = fmt.Errorf("analyze story context: %w", err)
		logging.ErrorWithContext(logger, "story context failed", "story_context_failed", logging.Error(err))
		em.Emit(pipeline.ErrorEvent(err))
		g.recordFinish(ctx, logger, summary, started, err)
		return summary, err
	}
	summary.Context = storyContext

	total := len(sections)
	em.Emit(pipeline.StatusEvent(statusPrompts))
	for i, section := range sections {
		summary.Images[i].SectionID = section.ID
		em.Emit(pipeline.Event{
			Type:    pipeline.EventPromptProgress,
			Current: i + 1,
			Total:   total,
			Message: fmt.Sprintf("Generating prompt %d/%d", i+1, total),
		})
		prompt, err := g.prompts.ImagePrompt(ctx, section.Text, storyContext)
		if err != nil {
			summary.Images[i].Err = fmt.Errorf("generate prompt: %w", err)
			continue
		}
		summary.Images[i].Prompt = prompt
	}

	em.Emit(pipeline.StatusEvent(statusImages))
	for i := range summary.Images {
		img := &summary.Images[i]
		em.Emit(pipeline.Event{
			Type:    pipeline.EventImageProgress,
			Current: i + 1,
			Total:   total,
			Message: fmt.Sprintf("Generating image %d/%d", i+1, total),
		})
		if img.Err == nil {
			img.URL, img.Err = g.render(ctx, img.Prompt)
		}
		if img.Err != nil {
			logging.WarnWithContext(logger, "section image failed", "section_image_failed",
				logging.Int(logging.FieldItemIndex, i),
				logging.Error(img.Err),
				logging.String(logging.FieldImpact, "section has no illustration"),
			)
			em.Emit(pipeline.Event{Type: pipeline.EventSectionError, SectionID: img.SectionID, Error: gateway.Reason(img.Err)})
			continue
		}
		em.Emit(pipeline.Event{
			Type:      pipeline.EventSectionComplete,
			SectionID: img.SectionID,
			Prompt:    img.Prompt,
			ImageURL:  img.URL,
			Current:   i + 1,
			Total:     total,
		})
	}

	if err := ctx.Err(); err != nil {
		em.Emit(pipeline.ErrorEvent(err))
		g.recordFinish(ctx, logger, summary, started, err)
		return summary, err
	}
	em.Emit(pipeline.Event{
		Type:     pipeline.EventComplete,
		Success:  pipeline.BoolPtr(true),
		Message:  completedMessage,
		Failures: failures(summary.Images),
	})
	logger.Info("illustration complete",
		logging.String(logging.FieldEventType, "illustration_complete"),
		logging.Int("generated", summary.Generated()),
		logging.Int("total", total),
	)
	g.recordFinish(ctx, logger, summary, started, nil)
	return summary, nil
}

func (g *Generator) render(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return g.images.GenerateImage(ctx, prompt, g.opts.Seed)
}

func failures(images []Image) []pipeline.ItemFailure {
	var out []pipeline.ItemFailure
	for i, img := range images {
		if img.Err != nil {
			out = append(out, pipeline.ItemFailure{ItemIndex: i, Reason: gateway.Reason(img.Err)})
		}
	}
	return out
}

func (g *Generator) recordStart(ctx context.Context, logger *slog.Logger, id string, total int, started time.Time) {
	if g.opts.Recorder == nil {
		return
	}
	rec := pipeline.RunRecord{ID: id, Kind: "images", State: pipeline.StateRunning, Total: total, StartedAt: started}
	if err := g.opts.Recorder.RunStarted(ctx, rec); err != nil {
		logger.Warn("illustration run not recorded", logging.Error(err))
	}
}

func (g *Generator) recordFinish(ctx context.Context, logger *slog.Logger, s Summary, started time.Time, err error) {
	if g.opts.Recorder == nil {
		return
	}
	rec := pipeline.RunRecord{
		ID:         s.RunID,
		Kind:       "images",
		State:      pipeline.StateDone,
		Total:      len(s.Images),
		Succeeded:  s.Generated(),
		Failures:   failures(s.Images),
		StartedAt:  started,
		FinishedAt: g.opts.Clock().UTC(),
	}
	if err != nil {
		rec.State = pipeline.StateFailed
		rec.Error = err.Error()
		rec.Succeeded = 0
		rec.Failures = nil
	}
	if recErr := g.opts.Recorder.RunFinished(context.WithoutCancel(ctx), rec); recErr != nil {
		logger.Warn("illustration run not recorded", logging.Error(recErr))
	}
}

package gallery

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyvox/internal/gateway"
	"storyvox/internal/logging"
	"storyvox/internal/pipeline"
	"storyvox/internal/services"
	"storyvox/internal/textutil"
	"storyvox/internal/workspace"
)

const (
	promptsFile = "prompts.txt"
	errorsFile  = "errors.txt"
	galleryFile = "gallery.html"
	defaultName = "Story"
)

//go:embed gallery.html.tmpl
var galleryTemplate string

var pageTemplate = template.Must(template.New("gallery").Parse(galleryTemplate))

// Image is one generated image to archive.
type Image struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

// Summary reports where a batch was archived and how it went.
type Summary struct {
	RunID       string
	Directory   string
	TotalImages int
	Saved       int
	Failed      int
}

// Fetcher performs one HTTP request through the gateway.
type Fetcher interface {
	Fetch(ctx context.Context, op gateway.Operation, req *http.Request) (gateway.Response, error)
}

// Options configures a Collector.
type Options struct {
	OutputRoot string
	Logger     *slog.Logger
	Recorder   pipeline.Recorder
	Clock      func() time.Time
}

// Collector downloads a batch of images into a run directory together with a
// prompt log, an error log, and an HTML preview page.
type Collector struct {
	fetch  Fetcher
	opts   Options
	logger *slog.Logger
}

// NewCollector builds a Collector.
func NewCollector(fetch Fetcher, opts Options) *Collector {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Collector{fetch: fetch, opts: opts, logger: logging.NewComponentLogger(opts.Logger, "gallery")}
}

// ImageName returns the archive file name of the image at 0-based index.
func ImageName(index int) string {
	return fmt.Sprintf("image-%03d.webp", index+1)
}

// Aggregate downloads images in order. A failed download is written to
// errors.txt and the batch continues; only failing to create the archive
// itself is an error.
func (c *Collector) Aggregate(ctx context.Context, images []Image, theme string) (Summary, error) {
	if len(images) == 0 {
		return Summary{}, services.Wrap(services.ErrValidation, "gallery", "download", "no images provided", nil)
	}
	started := c.opts.Clock().UTC()
	token := workspace.NewRunToken(started)
	ctx = services.WithRunID(ctx, token)
	logger := logging.WithContext(ctx, c.logger)
	c.recordStart(ctx, logger, token, len(images), started)

	dir := filepath.Join(c.opts.OutputRoot, token)
	summary := Summary{RunID: token, Directory: dir, TotalImages: len(images)}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = fmt.Errorf("create gallery directory: %w", err)
		c.recordFinish(ctx, logger, summary, nil, started, err)
		return summary, err
	}

	var prompts, failures bytes.Buffer
	var failed []pipeline.ItemFailure
	for i, img := range images {
		n := i + 1
		if err := c.download(services.WithItemIndex(ctx, i), img.URL, filepath.Join(dir, ImageName(i))); err != nil {
			summary.Failed++
			reason := gateway.Reason(err)
			failed = append(failed, pipeline.ItemFailure{ItemIndex: i, Reason: reason})
			fmt.Fprintf(&failures, "Failed to download image %d:\nURL: %s\nError: %s\n\n", n, img.URL, reason)
			logging.WarnWithContext(logger, "image download failed", "image_download_failed",
				logging.Int(logging.FieldItemIndex, i),
				logging.Error(err),
				logging.String(logging.FieldImpact, "image missing from gallery"),
			)
			continue
		}
		summary.Saved++
		fmt.Fprintf(&prompts, "Image %d:\n%s\nURL: %s\n\n", n, img.Prompt, img.URL)
	}

	var writeErr error
	if prompts.Len() > 0 {
		writeErr = os.WriteFile(filepath.Join(dir, promptsFile), prompts.Bytes(), 0o644)
	}
	if failures.Len() > 0 && writeErr == nil {
		writeErr = os.WriteFile(filepath.Join(dir, errorsFile), failures.Bytes(), 0o644)
	}
	if writeErr == nil {
		writeErr = writePage(filepath.Join(dir, galleryFile), theme, images)
	}
	if writeErr != nil {
		writeErr = fmt.Errorf("write gallery index: %w", writeErr)
	}

	logger.Info("gallery archived",
		logging.String(logging.FieldEventType, "gallery_complete"),
		logging.String("directory", dir),
		logging.Int("saved", summary.Saved),
		logging.Int("failed", summary.Failed),
	)
	c.recordFinish(ctx, logger, summary, failed, started, writeErr)
	return summary, writeErr
}

func (c *Collector) download(ctx context.Context, url, dest string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("invalid image URL %q", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.fetch.Fetch(ctx, gateway.OpFetch, req)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, resp.Body, 0o644)
}

type pageImage struct {
	File   string
	Number int
	Prompt string
}

type pageData struct {
	Theme  string
	Images []pageImage
}

func writePage(path, theme string, images []Image) error {
	data := pageData{Theme: textutil.TitleCase(theme)}
	if data.Theme == "" {
		data.Theme = defaultName
	}
	for i, img := range images {
		data.Images = append(data.Images, pageImage{File: ImageName(i), Number: i + 1, Prompt: img.Prompt})
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (c *Collector) recordStart(ctx context.Context, logger *slog.Logger, id string, total int, started time.Time) {
	if c.opts.Recorder == nil {
		return
	}
	rec := pipeline.RunRecord{ID: id, Kind: "gallery", State: pipeline.StateRunning, Total: total, StartedAt: started}
	if err := c.opts.Recorder.RunStarted(ctx, rec); err != nil {
		logger.Warn("gallery run not recorded", logging.Error(err))
	}
}

func (c *Collector) recordFinish(ctx context.Context, logger *slog.Logger, s Summary, failed []pipeline.ItemFailure, started time.Time, err error) {
	if c.opts.Recorder == nil {
		return
	}
	rec := pipeline.RunRecord{
		ID:         s.RunID,
		Kind:       "gallery",
		State:      pipeline.StateDone,
		Total:      s.TotalImages,
		Succeeded:  s.Saved,
		Output:     s.Directory,
		Failures:   failed,
		StartedAt:  started,
		FinishedAt: c.opts.Clock().UTC(),
	}
	if err != nil {
		rec.State = pipeline.StateFailed
		rec.Error = err.Error()
	}
	if recErr := c.opts.Recorder.RunFinished(context.WithoutCancel(ctx), rec); recErr != nil {
		logger.Warn("gallery run not recorded", logging.Error(recErr))
	}
}

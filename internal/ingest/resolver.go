package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyvox/internal/fileutil"
	"storyvox/internal/gateway"
	"storyvox/internal/logging"
	"storyvox/internal/pipeline"
	"storyvox/internal/services"
	"storyvox/internal/services/whisperx"
	"storyvox/internal/textutil"
	"storyvox/internal/workspace"
)

// Source names where a resolved transcript came from.
type Source string

const (
	SourceCaptions      Source = "captions"
	SourceTranscription Source = "transcription"
	SourceNone          Source = "none"
)

// ErrTranscriptionFailed marks a result whose audio is valid but whose
// speech-to-text fallback failed.
var ErrTranscriptionFailed = errors.New("TranscriptionFailed")

// Downloader is the subset of yt-dlp the resolver needs.
type Downloader interface {
	Title(ctx context.Context, url string) (string, error)
	DownloadAudio(ctx context.Context, url, dest string) error
	FetchCaptions(ctx context.Context, url, dir string) ([]string, error)
}

// Transcriber turns downloaded audio into text.
type Transcriber interface {
	TranscribeFile(ctx context.Context, source, outputDir string) (whisperx.TranscribeResult, error)
}

// Result is the outcome of one Resolve call. AudioPath is always set when the
// returned error is nil, even if TranscriptionFailed is true.
type Result struct {
	RunID               string
	Directory           string
	Title               string
	AudioPath           string
	TranscriptPath      string
	Transcript          string
	Source              Source
	TranscriptionFailed bool
	TranscriptionErr    error
}

// Options configures a Resolver.
type Options struct {
	OutputRoot string
	TempRoot   string
	Logger     *slog.Logger
	Janitor    *workspace.Janitor
	Recorder   pipeline.Recorder
	Clock      func() time.Time
}

// Resolver ingests a video URL: it downloads the audio track, then prefers
// the video's own captions and only falls back to speech-to-text when none
// exist.
type Resolver struct {
	dl      Downloader
	stt     Transcriber
	opts    Options
	logger  *slog.Logger
	janitor *workspace.Janitor
}

// NewResolver builds a Resolver.
func NewResolver(dl Downloader, stt Transcriber, opts Options) *Resolver {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := logging.NewComponentLogger(opts.Logger, "ingest")
	janitor := opts.Janitor
	if janitor == nil {
		janitor = workspace.NewJanitor(logger)
	}
	return &Resolver{dl: dl, stt: stt, opts: opts, logger: logger, janitor: janitor}
}

// Resolve downloads url and attaches a transcript. Only an invalid URL or a
// failed audio download is an error; caption and transcription problems are
// reported on the Result.
func (r *Resolver) Resolve(ctx context.Context, url string) (Result, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ingest", "resolve", "YouTube URL is required", nil)
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return Result{}, services.Wrap(services.ErrValidation, "ingest", "resolve", "YouTube URL must be http(s)", nil)
	}

	started := r.opts.Clock().UTC()
	token := workspace.NewRunToken(started)
	ctx = services.WithRunID(ctx, token)
	logger := logging.WithContext(ctx, r.logger)
	res := Result{RunID: token, Source: SourceNone}
	r.record(ctx, logger, true, pipeline.RunRecord{ID: token, Kind: "youtube", State: pipeline.StateRunning, Total: 1, StartedAt: started})

	res.Title = r.title(ctx, logger, url)
	stem := textutil.SanitizeTitle(res.Title)
	res.Directory = filepath.Join(r.opts.OutputRoot, token)
	if err := os.MkdirAll(res.Directory, 0o755); err != nil {
		err = services.Wrap(services.ErrConfiguration, "ingest", "resolve", "create run output directory", err)
		res.Directory = ""
		r.finish(ctx, logger, res, started, err)
		return res, err
	}
	res.AudioPath = filepath.Join(res.Directory, stem+".mp3")

	downloadErr := r.dl.DownloadAudio(services.WithStage(ctx, "download"), url, res.AudioPath)
	if downloadErr != nil {
		res.AudioPath = ""
		_ = os.Remove(res.Directory)
		res.Directory = ""
		logging.ErrorWithContext(logger, "audio download failed", "download_failed", logging.Error(downloadErr))
		r.finish(ctx, logger, res, started, downloadErr)
		return res, fmt.Errorf("download audio: %w", downloadErr)
	}

	if r.captions(ctx, logger, url, stem, &res) {
		r.finish(ctx, logger, res, started, nil)
		return res, nil
	}

	r.transcribe(ctx, logger, &res)
	r.finish(ctx, logger, res, started, nil)
	return res, nil
}

func (r *Resolver) title(ctx context.Context, logger *slog.Logger, url string) string {
	title, err := r.dl.Title(services.WithStage(ctx, "title"), url)
	if err != nil {
		logging.WarnWithContext(logger, "title lookup failed", "title_fallback",
			logging.Error(err),
			logging.String(logging.FieldImpact, "audio saved under default name"),
		)
		return textutil.DefaultTitle
	}
	if title == "" {
		return textutil.DefaultTitle
	}
	return title
}

// captions tries the primary transcript source. Caption files are fetched
// into a private workspace that is always released.
func (r *Resolver) captions(ctx context.Context, logger *slog.Logger, url, stem string, res *Result) bool {
	token, _ := services.RunIDFromContext(ctx)
	ws, err := workspace.Create(r.opts.TempRoot, token)
	if err != nil {
		logger.Warn("caption workspace unavailable", logging.Error(err))
		logger.Info("transcript source chosen", logging.Args(logging.DecisionAttrs("transcript_source", string(SourceTranscription), "caption workspace unavailable")...)...)
		return false
	}
	defer r.janitor.Cleanup(ws)

	files, err := r.dl.FetchCaptions(services.WithStage(ctx, "captions"), url, ws.Dir())
	for _, f := range files {
		ws.Track(f)
	}
	if err != nil || len(files) == 0 {
		reason := "no captions available"
		if err != nil {
			reason = gateway.Reason(err)
		}
		logger.Info("transcript source chosen", logging.Args(logging.DecisionAttrs("transcript_source", string(SourceTranscription), reason)...)...)
		return false
	}

	data, err := os.ReadFile(files[0])
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		logger.Info("transcript source chosen", logging.Args(logging.DecisionAttrs("transcript_source", string(SourceTranscription), "caption file unreadable")...)...)
		return false
	}
	dest := filepath.Join(res.Directory, stem+".json")
	if err := fileutil.Publish(files[0], dest); err != nil {
		logger.Warn("caption save failed", logging.Error(err))
		return false
	}
	res.TranscriptPath = dest
	res.Transcript = string(data)
	res.Source = SourceCaptions
	logger.Info("transcript source chosen", logging.Args(logging.DecisionAttrs("transcript_source", string(SourceCaptions), filepath.Base(files[0]))...)...)
	return true
}

func (r *Resolver) transcribe(ctx context.Context, logger *slog.Logger, res *Result) {
	out, err := r.stt.TranscribeFile(services.WithStage(ctx, "transcription"), res.AudioPath, res.Directory)
	if err != nil {
		res.TranscriptionFailed = true
		res.TranscriptionErr = fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
		logging.WarnWithContext(logger, "transcription failed", "transcription_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "audio delivered without transcript"),
		)
		return
	}
	res.Source = SourceTranscription
	res.Transcript = out.Text
	res.TranscriptPath = out.TextPath
	logger.Info("audio transcribed",
		logging.String(logging.FieldEventType, "transcription_complete"),
		logging.Bool("empty", out.Empty()),
	)
}

func (r *Resolver) finish(ctx context.Context, logger *slog.Logger, res Result, started time.Time, err error) {
	rec := pipeline.RunRecord{
		ID:         res.RunID,
		Kind:       "youtube",
		State:      pipeline.StateDone,
		Total:      1,
		Succeeded:  1,
		Output:     res.AudioPath,
		StartedAt:  started,
		FinishedAt: r.opts.Clock().UTC(),
	}
	if err != nil {
		rec.State = pipeline.StateFailed
		rec.Succeeded = 0
		rec.Error = err.Error()
	} else if res.TranscriptionFailed {
		rec.Failures = []pipeline.ItemFailure{{ItemIndex: 0, Reason: gateway.Reason(res.TranscriptionErr)}}
	}
	r.record(ctx, logger, false, rec)
}

func (r *Resolver) record(ctx context.Context, logger *slog.Logger, start bool, rec pipeline.RunRecord) {
	if r.opts.Recorder == nil {
		return
	}
	var err error
	if start {
		err = r.opts.Recorder.RunStarted(ctx, rec)
	} else {
		err = r.opts.Recorder.RunFinished(context.WithoutCancel(ctx), rec)
	}
	if err != nil {
		logger.Warn("ingest run not recorded", logging.Error(err))
	}
}


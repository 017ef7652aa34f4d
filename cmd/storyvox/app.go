package main

import (
	"log/slog"

	"storyvox/internal/api"
	"storyvox/internal/config"
	"storyvox/internal/gallery"
	"storyvox/internal/gateway"
	"storyvox/internal/illustrate"
	"storyvox/internal/ingest"
	"storyvox/internal/pipeline"
	"storyvox/internal/runstore"
	"storyvox/internal/services/ffmpeg"
	"storyvox/internal/services/llm"
	"storyvox/internal/services/replicate"
	"storyvox/internal/services/tts"
	"storyvox/internal/services/whisperx"
	"storyvox/internal/services/ytdlp"
	"storyvox/internal/storygen"
	"storyvox/internal/workspace"
)

// app holds the collaborators shared by every command that runs pipelines.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	gateway  *gateway.Gateway
	janitor  *workspace.Janitor
	recorder pipeline.Recorder
}

func newApp(cfg *config.Config, logger *slog.Logger, recorders ...pipeline.Recorder) *app {
	gw := gateway.New(
		gateway.WithLogger(logger),
		gateway.WithTimeouts(cfg.OperationTimeouts()),
		gateway.WithToolLogDir(cfg.ToolLogDir()),
	)
	return &app{
		cfg:      cfg,
		logger:   logger,
		gateway:  gw,
		janitor:  workspace.NewJanitor(logger),
		recorder: pipeline.Recorders(recorders...),
	}
}

func (a *app) speech() *tts.Client {
	return tts.NewClient(tts.Config{
		BaseURL:        a.cfg.TTS.BaseURL,
		Model:          a.cfg.TTS.Model,
		DefaultVoice:   a.cfg.TTS.DefaultVoice,
		ResponseFormat: a.cfg.TTS.ResponseFormat,
	}, a.gateway)
}

func (a *app) mergeExecutor() *pipeline.Executor {
	speech := a.speech()
	task := pipeline.NewSpeechTask(speech, speech.DefaultVoice(), speech.Format())
	agg := pipeline.NewAudioConcat(ffmpeg.New(a.cfg.Tools.FFmpeg, a.gateway), ffmpeg.Manifest)
	return pipeline.NewExecutor(task, agg, pipeline.Options{
		Kind:       "merge",
		TempRoot:   a.cfg.Paths.TempDir,
		OutputRoot: a.cfg.Paths.OutputDir,
		Logger:     a.logger,
		Janitor:    a.janitor,
		Recorder:   a.recorder,
	})
}

func (a *app) resolver() *ingest.Resolver {
	dl := ytdlp.New(a.cfg.Tools.YTDLP, a.gateway)
	stt := whisperx.NewService(whisperx.Config{
		Binary: a.cfg.Tools.WhisperX,
		Model:  a.cfg.Tools.WhisperXModel,
	}, a.gateway)
	return ingest.NewResolver(dl, stt, ingest.Options{
		OutputRoot: a.cfg.Paths.OutputDir,
		TempRoot:   a.cfg.Paths.TempDir,
		Logger:     a.logger,
		Janitor:    a.janitor,
		Recorder:   a.recorder,
	})
}

// writer returns nil when no LLM key is configured.
func (a *app) writer() *storygen.Generator {
	client := llm.NewClient(llm.Config{
		APIKey:         a.cfg.LLM.APIKey,
		BaseURL:        a.cfg.LLM.BaseURL,
		Model:          a.cfg.LLM.Model,
		Referer:        a.cfg.LLM.Referer,
		Title:          a.cfg.LLM.Title,
		TimeoutSeconds: a.cfg.LLM.TimeoutSeconds,
	}, llm.WithGateway(a.gateway))
	if !client.Configured() {
		return nil
	}
	return storygen.New(client)
}

// images returns nil when no Replicate token is configured.
func (a *app) images() *replicate.Client {
	client := replicate.NewClient(replicate.Config{
		APIToken:       a.cfg.Replicate.APIToken,
		BaseURL:        a.cfg.Replicate.BaseURL,
		Model:          a.cfg.Replicate.Model,
		Seed:           a.cfg.Replicate.Seed,
		InferenceSteps: a.cfg.Replicate.InferenceSteps,
		GuidanceScale:  a.cfg.Replicate.GuidanceScale,
	}, a.gateway)
	if !client.Configured() {
		return nil
	}
	return client
}

func (a *app) gallery() *gallery.Collector {
	return gallery.NewCollector(a.gateway, gallery.Options{
		OutputRoot: a.cfg.Paths.OutputDir,
		Logger:     a.logger,
		Recorder:   a.recorder,
	})
}

// services assembles the API collaborators. Unconfigured providers stay nil
// so their routes answer 503.
func (a *app) services(store *runstore.Store) api.Services {
	svc := api.Services{
		Speech:  a.speech(),
		Merge:   a.mergeExecutor(),
		YouTube: a.resolver(),
		Gallery: a.gallery(),
	}
	if store != nil {
		svc.Runs = store
	}
	writer := a.writer()
	if writer != nil {
		svc.Writer = writer
	}
	images := a.images()
	if images != nil {
		svc.Images = images
	}
	if writer != nil && images != nil {
		svc.Illustrator = illustrate.New(writer, images, illustrate.Options{
			Seed:              a.cfg.Replicate.Seed,
			RequestsPerMinute: a.cfg.Replicate.RequestsPerMinute,
			Logger:            a.logger,
			Recorder:          a.recorder,
		})
	}
	return svc
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"storyvox/internal/gallery"
	"storyvox/internal/illustrate"
	"storyvox/internal/ingest"
	"storyvox/internal/logging"
	"storyvox/internal/pipeline"
	"storyvox/internal/runstore"
	"storyvox/internal/storygen"
)

const defaultMaxConcurrentRuns = 4

// Speaker synthesizes one clip.
type Speaker interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Merger runs the multi-section audio pipeline.
type Merger interface {
	Execute(ctx context.Context, items []pipeline.Item, em pipeline.Emitter) (pipeline.Summary, error)
}

// Resolver ingests a YouTube URL into audio and transcript.
type Resolver interface {
	Resolve(ctx context.Context, url string) (ingest.Result, error)
}

// Writer produces text content through the LLM.
type Writer interface {
	Story(ctx context.Context, theme string) (string, error)
	Script(ctx context.Context, story string) (storygen.Script, error)
	PodcastOutline(ctx context.Context, topic string) (string, error)
	PodcastScript(ctx context.Context, content string) ([]storygen.DialogLine, error)
	ImagePrompt(ctx context.Context, text, storyContext string) (string, error)
	TranslatePodcast(ctx context.Context, script string) (string, error)
	TranslateStoryScript(ctx context.Context, script string) (string, error)
}

// ImageGenerator renders one prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, seed int) (string, error)
}

// Illustrator generates one image per story section.
type Illustrator interface {
	GenerateAll(ctx context.Context, sections []storygen.Section, em pipeline.Emitter) (illustrate.Summary, error)
}

// Archiver downloads an image batch into a gallery directory.
type Archiver interface {
	Aggregate(ctx context.Context, images []gallery.Image, theme string) (gallery.Summary, error)
}

// RunLister reads run history.
type RunLister interface {
	List(ctx context.Context, limit int) ([]runstore.Run, error)
}

// Services are the collaborators behind the routes. A nil service makes its
// routes answer 503.
type Services struct {
	Speech      Speaker
	Merge       Merger
	YouTube     Resolver
	Writer      Writer
	Images      ImageGenerator
	Illustrator Illustrator
	Gallery     Archiver
	Runs        RunLister
}

// Options configures the HTTP server.
type Options struct {
	Bind              string
	Token             string
	AllowedOrigins    []string
	MaxConcurrentRuns int
	OutputDir         string
	DefaultVoice      string
	DefaultSeed       int
	Logger            *slog.Logger
}

// Server serves the storyvox HTTP API.
type Server struct {
	svc    Services
	opts   Options
	logger *slog.Logger
	pool   *ants.Pool

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// New builds a Server. Release must be called to free the run pool.
func New(svc Services, opts Options) (*Server, error) {
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = defaultMaxConcurrentRuns
	}
	s := &Server{
		svc:    svc,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "api-server"),
	}

	pool, err := ants.NewPool(opts.MaxConcurrentRuns,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			s.logger.Error("panic in pipeline run", logging.String("panic", fmt.Sprint(p)))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create run pool: %w", err)
	}
	s.pool = pool

	mux := http.NewServeMux()
	mux.HandleFunc("GET /voices", s.handleVoices)
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /generate-and-merge", s.handleMerge)
	mux.HandleFunc("POST /download-youtube-audio", s.handleYouTube)
	mux.HandleFunc("POST /generate-story", s.handleStory)
	mux.HandleFunc("POST /generate-script", s.handleScript)
	mux.HandleFunc("POST /generate-podcast", s.handlePodcast)
	mux.HandleFunc("POST /generate-podcast-script", s.handlePodcastScript)
	mux.HandleFunc("POST /generate-image-prompt", s.handleImagePrompt)
	mux.HandleFunc("POST /generate-image", s.handleImage)
	mux.HandleFunc("POST /generate-all-images", s.handleAllImages)
	mux.HandleFunc("POST /download-images", s.handleDownloadImages)
	mux.HandleFunc("POST /translate-podcast", s.handleTranslatePodcast)
	mux.HandleFunc("POST /translate-story-script", s.handleTranslateStory)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if dir := strings.TrimSpace(opts.OutputDir); dir != "" {
		mux.Handle("GET /output/", http.StripPrefix("/output/", http.FileServer(http.Dir(dir))))
	}

	s.handler = requestIDMiddleware(corsMiddleware(opts.AllowedOrigins, authMiddleware(opts.Token, mux)))
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Generation endpoints wait on remote models; streams lift this entirely.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wrapped route handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured bind address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.opts.Bind)
	if bind == "" {
		return errors.New("api bind address is required")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down, giving in-flight requests five seconds.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

// Release frees the run pool.
func (s *Server) Release() {
	if s != nil && s.pool != nil {
		s.pool.Release()
	}
}

// admit runs fn on the run pool and waits for it. It reports false after
// answering 503 when the pool is saturated.
func (s *Server) admit(w http.ResponseWriter, fn func()) bool {
	done := make(chan struct{})
	err := s.pool.Submit(func() {
		defer close(done)
		fn()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			s.logger.Warn("run rejected, pool saturated",
				logging.String(logging.FieldEventType, "run_rejected"),
				logging.Int("capacity", s.pool.Cap()),
			)
			s.writeError(w, http.StatusServiceUnavailable, "server busy, try again later")
			return false
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}
	<-done
	return true
}

// openStream switches the response to NDJSON and lifts the server write
// deadline for the lifetime of the stream.
func (s *Server) openStream(w http.ResponseWriter, r *http.Request) *pipeline.StreamEmitter {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	logger := logging.WithContext(r.Context(), s.logger)
	return pipeline.NewStreamEmitter(w,
		func() { _ = rc.Flush() },
		func(err error) {
			logger.Info("stream client gone",
				logging.String(logging.FieldEventType, "client_gone"),
				logging.Error(err),
			)
		},
	)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) unavailable(w http.ResponseWriter, name string) {
	s.writeError(w, http.StatusServiceUnavailable, name+" is not configured")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Success: false, Error: message})
}

func (s *Server) publicPath(path string) string {
	if path == "" || s.opts.OutputDir == "" {
		return path
	}
	rel, err := filepath.Rel(s.opts.OutputDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return "output/" + filepath.ToSlash(rel)
}

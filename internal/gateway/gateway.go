package gateway

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"storyvox/internal/logging"
)

// Operation identifies which external tool or service an invocation targets.
type Operation string

const (
	OpSynthesis     Operation = "synthesis"
	OpConcatenation Operation = "concatenation"
	OpDownload      Operation = "download"
	OpTranscript    Operation = "transcript"
	OpTranscription Operation = "transcription"
	OpGeneration    Operation = "generation"
	OpImage         Operation = "image"
	OpFetch         Operation = "fetch"
)

// Output is the captured result of a process invocation.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// CommandRunner executes a process and returns its captured streams. Tests
// substitute a fake to avoid spawning real binaries.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Gateway is the single point through which storyvox invokes external binaries
// and remote services. It never retries; callers own retry policy.
type Gateway struct {
	logger     *slog.Logger
	runner     CommandRunner
	httpClient *http.Client
	timeouts   map[Operation]time.Duration
	toolLogDir string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for invocation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logging.NewComponentLogger(logger, "gateway")
	}
}

// WithCommandRunner overrides process execution (for testing).
func WithCommandRunner(runner CommandRunner) Option {
	return func(g *Gateway) {
		if runner != nil {
			g.runner = runner
		}
	}
}

// WithHTTPClient overrides the HTTP client used by Fetch.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithTimeouts applies per-operation time limits keyed by operation name.
func WithTimeouts(timeouts map[string]time.Duration) Option {
	return func(g *Gateway) {
		for name, limit := range timeouts {
			if limit > 0 {
				g.timeouts[Operation(name)] = limit
			}
		}
	}
}

// WithToolLogDir enables per-invocation tool logs in dir.
func WithToolLogDir(dir string) Option {
	return func(g *Gateway) {
		g.toolLogDir = strings.TrimSpace(dir)
	}
}

// New constructs a Gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		logger:     logging.NewNop(),
		runner:     runCommand,
		httpClient: &http.Client{},
		timeouts:   make(map[Operation]time.Duration),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Timeout returns the configured limit for op, or 0 when unlimited.
func (g *Gateway) Timeout(op Operation) time.Duration {
	return g.timeouts[op]
}

func (g *Gateway) withTimeout(ctx context.Context, op Operation) (context.Context, context.CancelFunc) {
	if limit := g.timeouts[op]; limit > 0 {
		return context.WithTimeout(ctx, limit)
	}
	return context.WithCancel(ctx)
}

// Exec runs binary name with args for operation op and classifies any failure.
func (g *Gateway) Exec(ctx context.Context, op Operation, name string, args ...string) (Output, error) {
	runCtx, cancel := g.withTimeout(ctx, op)
	defer cancel()

	logger := logging.WithContext(ctx, g.logger)
	logger.Debug("invoking external tool",
		logging.String("operation", string(op)),
		logging.String("tool", name),
		logging.Int("arg_count", len(args)),
	)

	started := time.Now()
	stdout, stderr, err := g.runner(runCtx, name, args...)
	out := Output{Stdout: stdout, Stderr: stderr, Duration: time.Since(started)}

	if g.toolLogDir != "" {
		writeToolLog(logger, g.toolLogDir, name, args, stdout, stderr, err)
	}
	if err == nil {
		return out, nil
	}

	gwErr := &Error{Kind: KindExternalFailure, Operation: op, Tool: name, Err: err}
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		gwErr.Kind = KindUnavailable
		gwErr.Detail = "binary not found"
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		gwErr.Detail = "timed out"
		gwErr.Err = timeoutCause(op, err)
	default:
		gwErr.Detail = stderrTail(stderr)
	}
	logger.Debug("external tool failed",
		logging.String("operation", string(op)),
		logging.String("tool", name),
		logging.String("kind", gwErr.Kind.String()),
		logging.Duration("duration", out.Duration),
		logging.Error(err),
	)
	return out, gwErr
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// stderrTail keeps the last few non-empty lines of tool output, which is where
// ffmpeg and yt-dlp report the actual failure.
func stderrTail(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	kept := make([]string, 0, 3)
	for i := len(lines) - 1; i >= 0 && len(kept) < 3; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append([]string{line}, kept...)
		}
	}
	return strings.Join(kept, " | ")
}

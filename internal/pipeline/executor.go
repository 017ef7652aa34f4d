package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"storyvox/internal/logging"
	"storyvox/internal/services"
	"storyvox/internal/workspace"
)

const defaultOutputName = "audio.wav"

// Summary is the outcome of one Execute call.
type Summary struct {
	RunID      string
	State      State
	Results    []Result
	Output     string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Artifacts returns the successful results in item order.
func (s Summary) Artifacts() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Failures returns the failed results in item order.
func (s Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Options configures an Executor.
type Options struct {
	Kind       string
	TempRoot   string
	OutputRoot string
	OutputName string
	Logger     *slog.Logger
	Janitor    *workspace.Janitor
	Recorder   Recorder
	Clock      func() time.Time
}

// Executor drives one run: it walks the items sequentially through a Task,
// aggregates whatever succeeded, and always releases the run workspace.
type Executor struct {
	task    Task
	agg     Aggregator
	opts    Options
	logger  *slog.Logger
	janitor *workspace.Janitor
}

// NewExecutor wires a task and aggregator into an executor.
func NewExecutor(task Task, agg Aggregator, opts Options) *Executor {
	if opts.Kind == "" {
		opts.Kind = "tts"
	}
	if opts.OutputName == "" {
		opts.OutputName = defaultOutputName
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := logging.NewComponentLogger(opts.Logger, "pipeline")
	janitor := opts.Janitor
	if janitor == nil {
		janitor = workspace.NewJanitor(logger)
	}
	return &Executor{task: task, agg: agg, opts: opts, logger: logger, janitor: janitor}
}

// Execute runs items to completion, emitting exactly one progress event per
// item and exactly one terminal event. The returned error is non-nil only for
// input rejected before any work starts; run failures are reported through the
// terminal event and Summary.Err.
func (e *Executor) Execute(ctx context.Context, items []Item, em Emitter) (Summary, error) {
	if em == nil {
		em = Discard
	}
	if len(items) == 0 {
		return Summary{State: StateFailed, Err: ErrNoItems}, ErrNoItems
	}

	started := e.opts.Clock().UTC()
	token := workspace.NewRunToken(started)
	summary := Summary{RunID: token, State: StateIdle, StartedAt: started}
	ctx = services.WithRunID(ctx, token)
	logger := logging.WithContext(ctx, e.logger)

	ws, err := workspace.Create(e.opts.TempRoot, token)
	if err != nil {
		summary.State = StateFailed
		summary.Err = services.Wrap(services.ErrConfiguration, "pipeline", "workspace", "create run workspace", err)
		summary.FinishedAt = e.opts.Clock().UTC()
		for _, item := range numbered(items) {
			summary.Results = append(summary.Results, Failure(item.Index, summary.Err))
		}
		logging.ErrorWithContext(logger, "run workspace unavailable", "run_failed", logging.Error(err))
		em.Emit(e.terminal(summary))
		return summary, nil
	}

	cleaned := false
	cleanup := func() {
		if cleaned {
			return
		}
		cleaned = true
		res := e.janitor.Cleanup(ws)
		logger.Debug("run workspace released",
			logging.String(logging.FieldEventType, "workspace_cleanup"),
			logging.Bool("removed", res.Removed),
			logging.Bool("fallback", res.Fallback),
		)
	}
	defer cleanup()

	e.recordStart(ctx, logger, summary, len(items))
	summary.State = StateRunning
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("kind", e.opts.Kind),
		logging.Int("item_count", len(items)),
	)

	summary.Results = e.runItems(ctx, logger, ws, items, em)
	artifacts := summary.Artifacts()

	switch {
	case len(artifacts) == 0:
		summary.State = StateFailed
		summary.Err = ErrNoArtifacts
	case ctx.Err() != nil:
		summary.State = StateFailed
		summary.Err = fmt.Errorf("run canceled: %w", ctx.Err())
	default:
		summary.State = StateMerging
		em.Emit(StatusEvent("Merging audio files..."))
		output := filepath.Join(e.opts.OutputRoot, token, e.opts.OutputName)
		mergeCtx := services.WithStage(ctx, "aggregate")
		if err := e.agg.Aggregate(mergeCtx, ws, artifacts, output); err != nil {
			summary.State = StateFailed
			summary.Err = err
		} else {
			summary.State = StateDone
			summary.Output = output
		}
	}

	cleanup()
	summary.FinishedAt = e.opts.Clock().UTC()

	if summary.State == StateDone {
		logger.Info("run completed",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.String("output", summary.Output),
			logging.Int("succeeded", len(artifacts)),
			logging.Int("failed", len(summary.Failures())),
			logging.Duration("elapsed", summary.FinishedAt.Sub(started)),
		)
	} else {
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			logging.Error(summary.Err),
			logging.Int("failed", len(summary.Failures())),
		)
	}

	em.Emit(e.terminal(summary))
	e.recordFinish(ctx, logger, summary)
	return summary, nil
}

func (e *Executor) runItems(ctx context.Context, logger *slog.Logger, ws *workspace.Workspace, items []Item, em Emitter) []Result {
	total := len(items)
	results := make([]Result, 0, total)
	for i, item := range numbered(items) {
		idx := item.Index
		em.Emit(Event{
			Type:      EventProgress,
			ItemIndex: IndexPtr(idx),
			Current:   i + 1,
			Total:     total,
			Message:   fmt.Sprintf("Generating audio for section %d/%d", i+1, total),
		})

		var res Result
		if err := ctx.Err(); err != nil {
			res = Failure(idx, fmt.Errorf("canceled: %w", err))
		} else {
			itemCtx := services.WithItemIndex(services.WithStage(ctx, "item"), idx)
			res = RunItem(itemCtx, e.task, ws, item)
		}
		results = append(results, res)

		if res.OK() {
			logger.Debug("item completed", logging.Int(logging.FieldItemIndex, idx), logging.String("artifact", res.Path))
			continue
		}
		logging.WarnWithContext(logger, "item failed", "item_failed",
			logging.Int(logging.FieldItemIndex, idx),
			logging.String("reason", res.Reason),
			logging.String(logging.FieldImpact, "section omitted from merged output"),
		)
		em.Emit(Event{
			Type:      EventSectionError,
			ItemIndex: IndexPtr(idx),
			Success:   BoolPtr(false),
			Error:     fmt.Sprintf("Failed to generate audio for section %d: %s", idx+1, res.Reason),
		})
	}
	return results
}

func (e *Executor) terminal(s Summary) Event {
	if s.State != StateDone {
		ev := ErrorEvent(s.Err)
		ev.RunID = s.RunID
		ev.Failures = wireFailures(s.Failures())
		return ev
	}
	return Event{
		Type:     EventComplete,
		RunID:    s.RunID,
		Success:  BoolPtr(true),
		Filename: e.publicPath(s.Output),
		Failures: wireFailures(s.Failures()),
	}
}

// publicPath renders an output file as the path it is served under.
func (e *Executor) publicPath(path string) string {
	rel, err := filepath.Rel(e.opts.OutputRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return "output/" + filepath.ToSlash(rel)
}

func (e *Executor) recordStart(ctx context.Context, logger *slog.Logger, s Summary, total int) {
	if e.opts.Recorder == nil {
		return
	}
	rec := RunRecord{ID: s.RunID, Kind: e.opts.Kind, State: StateRunning, Total: total, StartedAt: s.StartedAt}
	if err := e.opts.Recorder.RunStarted(ctx, rec); err != nil {
		logger.Warn("run start not recorded", logging.Error(err))
	}
}

func (e *Executor) recordFinish(ctx context.Context, logger *slog.Logger, s Summary) {
	if e.opts.Recorder == nil {
		return
	}
	rec := RunRecord{
		ID:         s.RunID,
		Kind:       e.opts.Kind,
		State:      s.State,
		Total:      len(s.Results),
		Succeeded:  len(s.Artifacts()),
		Output:     s.Output,
		Failures:   wireFailures(s.Failures()),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
	if s.Err != nil {
		rec.Error = s.Err.Error()
	}
	// The caller may already be gone; the record still has to land.
	if err := e.opts.Recorder.RunFinished(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("run result not recorded", logging.Error(err))
	}
}

// numbered keeps caller-supplied indices when they are non-negative and
// strictly increasing. Anything else is renumbered by position.
func numbered(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Index < 0 || (i > 0 && out[i].Index <= out[i-1].Index) {
			for j := range out {
				out[j].Index = j
			}
			break
		}
	}
	return out
}

func wireFailures(results []Result) []ItemFailure {
	if len(results) == 0 {
		return nil
	}
	out := make([]ItemFailure, 0, len(results))
	for _, r := range results {
		out = append(out, ItemFailure{ItemIndex: r.Index, Reason: r.Reason})
	}
	return out
}

// IsRejected reports whether err is an input rejection from Execute.
func IsRejected(err error) bool {
	return errors.Is(err, services.ErrValidation)
}

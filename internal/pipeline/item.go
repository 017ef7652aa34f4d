package pipeline

import (
	"context"
	"fmt"
	"strings"

	"storyvox/internal/gateway"
	"storyvox/internal/workspace"
)

// Item is one unit of pipeline input. Index is its 0-based submission position
// and is the correlation key for every event and result about it.
type Item struct {
	Index int
	Text  string
	Voice string
}

// Result is the outcome of one item: an artifact path on success, or a failure
// reason. Exactly one Result exists per submitted Item.
type Result struct {
	Index  int
	Path   string
	Reason string
	Err    error
}

// Artifact builds a successful result.
func Artifact(index int, path string) Result {
	return Result{Index: index, Path: path}
}

// Failure builds a failed result.
func Failure(index int, err error) Result {
	return Result{Index: index, Reason: gateway.Reason(err), Err: err}
}

// OK reports whether the result carries an artifact.
func (r Result) OK() bool {
	return r.Err == nil && strings.TrimSpace(r.Path) != ""
}

// Task produces the artifact for a single item, writing any files into ws.
type Task interface {
	Run(ctx context.Context, ws *workspace.Workspace, item Item) (string, error)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context, ws *workspace.Workspace, item Item) (string, error)

// Run calls f.
func (f TaskFunc) Run(ctx context.Context, ws *workspace.Workspace, item Item) (string, error) {
	return f(ctx, ws, item)
}

// RunItem executes task for item and folds every outcome, including panics,
// into a Result. Nothing escapes this boundary.
func RunItem(ctx context.Context, task Task, ws *workspace.Workspace, item Item) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Failure(item.Index, fmt.Errorf("item %d panicked: %v", item.Index, r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return Failure(item.Index, fmt.Errorf("canceled before start: %w", err))
	}
	path, err := task.Run(ctx, ws, item)
	if err != nil {
		return Failure(item.Index, err)
	}
	if strings.TrimSpace(path) == "" {
		return Failure(item.Index, fmt.Errorf("item %d produced no artifact", item.Index))
	}
	return Artifact(item.Index, path)
}

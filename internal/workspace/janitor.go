package workspace

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"storyvox/internal/logging"
)

// CleanupError pairs a path with the error that prevented its removal.
type CleanupError struct {
	Path  string
	Error error
}

// CleanupResult summarizes one janitor pass.
type CleanupResult struct {
	Removed  bool
	Fallback bool
	Errors   []CleanupError
}

// Janitor removes run workspaces. Failures are logged and reported in the
// result, never returned as errors.
type Janitor struct {
	logger    *slog.Logger
	remove    func(string) error
	removeAll func(string) error
}

// JanitorOption configures a Janitor.
type JanitorOption func(*Janitor)

// WithRemoveFuncs overrides filesystem removal (for testing failure paths).
func WithRemoveFuncs(remove, removeAll func(string) error) JanitorOption {
	return func(j *Janitor) {
		if remove != nil {
			j.remove = remove
		}
		if removeAll != nil {
			j.removeAll = removeAll
		}
	}
}

// NewJanitor constructs a Janitor.
func NewJanitor(logger *slog.Logger, opts ...JanitorOption) *Janitor {
	j := &Janitor{
		logger:    logging.NewComponentLogger(logger, "janitor"),
		remove:    os.Remove,
		removeAll: os.RemoveAll,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Cleanup deletes every tracked file, then the workspace directory. If bulk
// removal fails it deletes each remaining entry individually and retries.
// Calling Cleanup on an already removed workspace is a no-op.
func (j *Janitor) Cleanup(ws *Workspace) CleanupResult {
	var result CleanupResult
	if ws == nil {
		return result
	}
	dir := ws.Dir()
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return result
	}

	for _, path := range ws.Files() {
		if err := j.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
		}
	}

	err := j.removeAll(dir)
	if err == nil {
		result.Removed = true
		result.Errors = nil
		return j.report(ws, result)
	}
	result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})

	result.Fallback = true
	if entries, err := os.ReadDir(dir); err == nil {
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if err := j.removeAll(path); err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			}
		}
	}
	if err := j.removeAll(dir); err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
	} else {
		result.Removed = true
	}
	return j.report(ws, result)
}

func (j *Janitor) report(ws *Workspace, result CleanupResult) CleanupResult {
	if result.Removed {
		j.logger.Debug("workspace removed",
			logging.String(logging.FieldRunID, ws.Token()),
			logging.String("path", ws.Dir()),
			logging.Bool("fallback", result.Fallback),
			logging.String(logging.FieldEventType, "workspace_cleanup"),
		)
		return result
	}
	for _, failure := range result.Errors {
		logging.WarnWithContext(j.logger, "workspace cleanup failed; temp files remain", "workspace_cleanup_failed",
			logging.String(logging.FieldRunID, ws.Token()),
			logging.String("path", failure.Path),
			logging.Error(failure.Error),
			logging.String(logging.FieldErrorHint, "check temp_dir permissions or run 'storyvox cleanup'"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
	}
	return result
}

package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// tokenLayout sorts lexically in time order.
const tokenLayout = "20060102T150405.000Z"

// NewRunToken returns a sortable, run-unique token: a UTC millisecond timestamp
// followed by eight hex characters of a random UUID.
func NewRunToken(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return now.UTC().Format(tokenLayout) + "-" + id[:8]
}

// TokenTime parses the timestamp prefix of a run token.
func TokenTime(token string) (time.Time, bool) {
	prefix, _, ok := strings.Cut(token, "-")
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(tokenLayout, prefix)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ErrWorkspaceExists is returned when a run token collides with an existing directory.
var ErrWorkspaceExists = errors.New("workspace already exists")

// Workspace is the temporary directory owned by exactly one pipeline run.
type Workspace struct {
	token string
	dir   string

	mu    sync.Mutex
	files []string
}

// Create makes a new workspace directory <root>/<token>. It fails rather than
// reuse a directory another run may own.
func Create(root, token string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("workspace root is required")
	}
	if strings.TrimSpace(token) == "" || strings.ContainsAny(token, `/\`) {
		return nil, fmt.Errorf("invalid workspace token %q", token)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	dir := filepath.Join(root, token)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrWorkspaceExists, dir)
		}
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{token: token, dir: dir}, nil
}

// Token returns the run token the workspace is keyed by.
func (w *Workspace) Token() string { return w.token }

// Dir returns the absolute workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// ItemPath returns the path for the intermediate artifact of the item at index.
func (w *Workspace) ItemPath(index int, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return filepath.Join(w.dir, fmt.Sprintf("item-%03d.%s", index, ext))
}

// ManifestPath returns the path of the aggregation manifest for this run.
func (w *Workspace) ManifestPath() string {
	return filepath.Join(w.dir, "list-"+w.token+".txt")
}

// WriteFile writes data into the workspace and tracks the file for cleanup.
func (w *Workspace) WriteFile(path string, data []byte) error {
	if filepath.Dir(path) != w.dir {
		return fmt.Errorf("path %s is outside workspace %s", path, w.dir)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	w.Track(path)
	return nil
}

// Track records a file created inside the workspace by someone else (e.g. an
// external tool writing its output there).
func (w *Workspace) Track(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = append(w.files, path)
}

// Files returns the tracked files in creation order.
func (w *Workspace) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.files))
	copy(out, w.files)
	return out
}

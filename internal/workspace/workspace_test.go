package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"storyvox/internal/logging"
	"storyvox/internal/workspace"
)

func TestNewRunTokenIsSortableAndUnique(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	a := workspace.NewRunToken(now)
	b := workspace.NewRunToken(now)
	if a == b {
		t.Fatalf("expected distinct tokens within the same instant, got %q twice", a)
	}
	if !strings.HasPrefix(a, "20260304T050607.008Z-") {
		t.Fatalf("unexpected token prefix %q", a)
	}
	later := workspace.NewRunToken(now.Add(time.Second))
	if later <= a {
		t.Fatalf("expected later token to sort after earlier: %q vs %q", later, a)
	}
	ts, ok := workspace.TokenTime(a)
	if !ok || !ts.Equal(now.Truncate(time.Millisecond)) {
		t.Fatalf("TokenTime mismatch: %v %v", ts, ok)
	}
}

func TestCreateRejectsCollisions(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.Create(root, "run-a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ws.Dir() != filepath.Join(root, "run-a") {
		t.Fatalf("unexpected dir %q", ws.Dir())
	}
	if _, err := workspace.Create(root, "run-a"); !errors.Is(err, workspace.ErrWorkspaceExists) {
		t.Fatalf("expected collision error, got %v", err)
	}
	if _, err := workspace.Create(root, "../escape"); err == nil {
		t.Fatal("expected invalid token error")
	}
}

func TestWorkspaceTracksWrittenFiles(t *testing.T) {
	ws, err := workspace.Create(t.TempDir(), "run-b")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	path := ws.ItemPath(2, ".wav")
	if filepath.Base(path) != "item-002.wav" {
		t.Fatalf("unexpected item path %q", path)
	}
	if err := ws.WriteFile(path, []byte("RIFF")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := ws.WriteFile(filepath.Join(t.TempDir(), "elsewhere.wav"), nil); err == nil {
		t.Fatal("expected write outside workspace to fail")
	}
	if files := ws.Files(); len(files) != 1 || files[0] != path {
		t.Fatalf("unexpected tracked files %v", files)
	}
}

func TestJanitorCleanupIsIdempotent(t *testing.T) {
	ws, err := workspace.Create(t.TempDir(), "run-c")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = ws.WriteFile(ws.ItemPath(0, "wav"), []byte("a"))
	_ = ws.WriteFile(ws.ManifestPath(), []byte("file 'a'"))

	janitor := workspace.NewJanitor(logging.NewNop())
	first := janitor.Cleanup(ws)
	if !first.Removed || len(first.Errors) != 0 {
		t.Fatalf("unexpected first cleanup result %+v", first)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Fatalf("expected workspace removed, stat err=%v", err)
	}
	second := janitor.Cleanup(ws)
	if second.Removed || len(second.Errors) != 0 {
		t.Fatalf("expected second cleanup to be a no-op, got %+v", second)
	}
	if res := janitor.Cleanup(nil); res.Removed {
		t.Fatal("expected nil workspace cleanup to do nothing")
	}
}

func TestJanitorFallsBackToPerEntryRemoval(t *testing.T) {
	ws, err := workspace.Create(t.TempDir(), "run-d")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ws.Dir(), "untracked.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirAttempts := 0
	removeAll := func(path string) error {
		if path == ws.Dir() {
			dirAttempts++
			if dirAttempts == 1 {
				return errors.New("device busy")
			}
		}
		return os.RemoveAll(path)
	}
	janitor := workspace.NewJanitor(logging.NewNop(), workspace.WithRemoveFuncs(nil, removeAll))

	result := janitor.Cleanup(ws)
	if !result.Fallback {
		t.Fatal("expected fallback path to be taken")
	}
	if !result.Removed {
		t.Fatalf("expected workspace removed after fallback, got %+v", result)
	}
	if dirAttempts != 2 {
		t.Fatalf("expected directory removal retried once, got %d attempts", dirAttempts)
	}
}

func TestJanitorReportsPersistentFailureWithoutPanicking(t *testing.T) {
	ws, err := workspace.Create(t.TempDir(), "run-e")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	janitor := workspace.NewJanitor(logging.NewNop(), workspace.WithRemoveFuncs(nil, func(string) error {
		return errors.New("permission denied")
	}))
	result := janitor.Cleanup(ws)
	if result.Removed {
		t.Fatal("expected removal to fail")
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected cleanup errors to be reported")
	}
}

func TestCleanStaleRemovesOldWorkspaces(t *testing.T) {
	root := t.TempDir()
	oldDir := filepath.Join(root, "old-run")
	activeDir := filepath.Join(root, "active-run")
	recentDir := filepath.Join(root, "recent-run")
	for _, dir := range []string{oldDir, activeDir, recentDir} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	for _, dir := range []string{oldDir, activeDir} {
		if err := os.Chtimes(dir, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	result := workspace.CleanStale(context.Background(), root, 24*time.Hour, map[string]struct{}{"active-run": {}}, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("unexpected removals %v", result.Removed)
	}
	for _, dir := range []string{activeDir, recentDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected %s to remain: %v", dir, err)
		}
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := workspace.CleanStale(context.Background(), dir, time.Hour, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestListReportsSizes(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.Create(root, "20260101T000000.000Z-aaaaaaaa")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = ws.WriteFile(ws.ItemPath(0, "wav"), []byte("12345"))

	dirs, err := workspace.List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Size != 5 {
		t.Fatalf("unexpected listing %+v", dirs)
	}
}

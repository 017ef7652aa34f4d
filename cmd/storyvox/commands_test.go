package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"storyvox/internal/pipeline"
	"storyvox/internal/runstore"
	"storyvox/internal/services/tts"
	"storyvox/internal/workspace"
)

func TestVoicesJSON(t *testing.T) {
	out, _, err := runCLI(t, []string{"voices", "--json"}, "")
	if err != nil {
		t.Fatalf("voices: %v", err)
	}
	var voices []tts.Voice
	if err := json.Unmarshal([]byte(out), &voices); err != nil {
		t.Fatalf("decode voices: %v\n%s", err, out)
	}
	if len(voices) != len(tts.Voices()) {
		t.Fatalf("got %d voices, want %d", len(voices), len(tts.Voices()))
	}
}

func TestVoicesTable(t *testing.T) {
	out, _, err := runCLI(t, []string{"voices"}, "")
	if err != nil {
		t.Fatalf("voices: %v", err)
	}
	requireContains(t, out, "af_nicole")
	requireContains(t, out, "LANGUAGE")
}

func TestRunsListsRecordedRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	store, err := runstore.Open(env.cfg)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := pipeline.RunRecord{ID: "run-1", Kind: "merge", State: pipeline.StateRunning, Total: 2, StartedAt: started}
	if err := store.RunStarted(context.Background(), rec); err != nil {
		t.Fatalf("RunStarted: %v", err)
	}
	rec.State = pipeline.StateDone
	rec.Succeeded = 1
	rec.Output = "output/merged.wav"
	rec.Failures = []pipeline.ItemFailure{{ItemIndex: 1, Reason: "speech server unavailable"}}
	rec.FinishedAt = started.Add(time.Minute)
	if err := store.RunFinished(context.Background(), rec); err != nil {
		t.Fatalf("RunFinished: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out, _, err = runCLI(t, []string{"runs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("runs --json: %v", err)
	}
	var runs []runstore.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" || runs[0].Status != "done" || runs[0].Failed != 1 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	out, _, err = runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "run-1")
	requireContains(t, out, "output/merged.wav")
}

func TestMergeRejectsInputWithoutText(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "sections.json")
	if err := os.WriteFile(input, []byte(`{"sections":[{"text":"  "},{"text":""}]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, _, err := runCLI(t, []string{"merge", input}, env.configPath)
	if !errors.Is(err, pipeline.ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
	if out != "" {
		t.Fatalf("expected no events for empty input, got %q", out)
	}
}

func TestParseSectionsAcceptsBothShapes(t *testing.T) {
	doc, err := parseSections([]byte(`{"sections":[{"text":"a","voice":"am_adam"}]}`))
	if err != nil || len(doc) != 1 || doc[0].Voice != "am_adam" {
		t.Fatalf("document form: %+v %v", doc, err)
	}
	arr, err := parseSections([]byte(" [{\"text\":\"a\"},{\"text\":\"b\"}]\n"))
	if err != nil || len(arr) != 2 {
		t.Fatalf("array form: %+v %v", arr, err)
	}
	if _, err := parseSections([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMergeItemsKeepsSubmissionIndex(t *testing.T) {
	items := mergeItems([]mergeSection{
		{Text: "first"},
		{Text: "   "},
		{Text: "third", Voice: "bf_emma"},
	}, "am_adam")
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Index != 0 || items[0].Voice != "am_adam" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Index != 2 || items[1].Voice != "bf_emma" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestCleanupRemovesStaleWorkspaces(t *testing.T) {
	env := setupCLITestEnv(t)

	old := filepath.Join(env.cfg.Paths.TempDir, workspace.NewRunToken(time.Now().Add(-48*time.Hour)))
	fresh := filepath.Join(env.cfg.Paths.TempDir, workspace.NewRunToken(time.Now()))
	for _, dir := range []string{old, fresh} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	out, _, err := runCLI(t, []string{"cleanup", "--max-age", "1h", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	var result cleanupOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("unexpected removals: %+v", result.Removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected stale workspace removed, stat err=%v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("expected fresh workspace kept: %v", err)
	}
}

func TestDepsReportsMissingTools(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"deps", "--json"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "required tool(s) missing") {
		t.Fatalf("expected missing tool error, got %v", err)
	}
	var result depsOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	for _, tool := range result.Tools {
		if tool.Available {
			t.Fatalf("expected %s to be unavailable", tool.Name)
		}
	}
}

func TestServeRefusesSecondInstance(t *testing.T) {
	env := setupCLITestEnv(t)
	lock := flock.New(env.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}
	defer func() { _ = lock.Unlock() }()

	_, _, err = runCLI(t, []string{"serve"}, env.configPath)
	if !errors.Is(err, errServerRunning) {
		t.Fatalf("expected errServerRunning, got %v", err)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Name", "Count"}, [][]string{{"alpha", "1"}, {"beta"}}, []columnAlignment{alignLeft, alignRight}, false)
	for _, want := range []string{"NAME", "COUNT", "alpha", "beta"} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "<nil>") {
		t.Fatalf("short row rendered placeholder cells:\n%s", out)
	}
	if renderTable(nil, nil, nil, false) != "" {
		t.Fatal("expected empty output without headers")
	}
	if got := colorStatus("done", false); got != "done" {
		t.Fatalf("colorStatus without color = %q", got)
	}
	if got := colorStatus("failed", true); !strings.HasPrefix(got, ansiRed) {
		t.Fatalf("colorStatus failed = %q", got)
	}
}

func TestPadRowFillsMissingCells(t *testing.T) {
	row := padRow([]string{"beta"}, 3)
	if len(row) != 3 || row[0] != "beta" || row[1] != "" || row[2] != "" {
		t.Fatalf("padRow = %#v", row)
	}
	if got := padRow([]string{"a", "b", "c"}, 2); len(got) != 2 || got[1] != "b" {
		t.Fatalf("padRow should trim extra cells, got %#v", got)
	}
}

package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storyvox/internal/pipeline"
	"storyvox/internal/services"
	"storyvox/internal/services/whisperx"
)

type fakeDownloader struct {
	title       string
	titleErr    error
	downloadErr error
	captions    string
	captionErr  error
	downloads   int
}

func (f *fakeDownloader) Title(context.Context, string) (string, error) {
	return f.title, f.titleErr
}

func (f *fakeDownloader) DownloadAudio(_ context.Context, _ string, dest string) error {
	f.downloads++
	if f.downloadErr != nil {
		return f.downloadErr
	}
	return os.WriteFile(dest, []byte("ID3"), 0o644)
}

func (f *fakeDownloader) FetchCaptions(_ context.Context, _ string, dir string) ([]string, error) {
	if f.captionErr != nil {
		return nil, f.captionErr
	}
	if f.captions == "" {
		return nil, nil
	}
	path := filepath.Join(dir, "vid.en.json3")
	if err := os.WriteFile(path, []byte(f.captions), 0o644); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

type fakeTranscriber struct {
	calls int
	text  string
	err   error
}

func (f *fakeTranscriber) TranscribeFile(_ context.Context, source, outputDir string) (whisperx.TranscribeResult, error) {
	f.calls++
	if f.err != nil {
		return whisperx.TranscribeResult{}, f.err
	}
	text := f.text
	if text == "" {
		text = whisperx.NoTranscription
	}
	return whisperx.TranscribeResult{Text: text, TextPath: filepath.Join(outputDir, "t.txt")}, nil
}

type memRecorder struct {
	finished []pipeline.RunRecord
}

func (m *memRecorder) RunStarted(context.Context, pipeline.RunRecord) error { return nil }

func (m *memRecorder) RunFinished(_ context.Context, rec pipeline.RunRecord) error {
	m.finished = append(m.finished, rec)
	return nil
}

func newResolver(t *testing.T, dl Downloader, stt Transcriber, rec pipeline.Recorder) (*Resolver, string, string) {
	t.Helper()
	base := t.TempDir()
	out := filepath.Join(base, "output")
	tmp := filepath.Join(base, "temp")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(dl, stt, Options{
		OutputRoot: out,
		TempRoot:   tmp,
		Recorder:   rec,
		Clock:      func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	return r, out, tmp
}

func assertNoWorkspaces(t *testing.T, tmp string) {
	t.Helper()
	entries, _ := os.ReadDir(tmp)
	if len(entries) != 0 {
		t.Fatalf("caption workspace leaked: %d entries", len(entries))
	}
}

func TestResolveUsesCaptionsAndSkipsTranscription(t *testing.T) {
	dl := &fakeDownloader{title: `Talk: "Go" <2026>`, captions: `{"events":[{"segs":[{"utf8":"hi"}]}]}`}
	stt := &fakeTranscriber{}
	r, out, tmp := newResolver(t, dl, stt, nil)

	res, err := r.Resolve(context.Background(), "https://youtu.be/vid")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stt.calls != 0 {
		t.Fatalf("transcription must be skipped when captions exist, got %d calls", stt.calls)
	}
	if res.Source != SourceCaptions || res.TranscriptionFailed {
		t.Fatalf("unexpected result %+v", res)
	}
	runDir := filepath.Join(out, res.RunID)
	if res.Directory != runDir || res.AudioPath != filepath.Join(runDir, "Talk Go 2026.mp3") {
		t.Fatalf("audio path = %s", res.AudioPath)
	}
	saved, err := os.ReadFile(filepath.Join(runDir, "Talk Go 2026.json"))
	if err != nil || string(saved) != dl.captions {
		t.Fatalf("caption file not saved: %v", err)
	}
	assertNoWorkspaces(t, tmp)
}

func TestResolveFallsBackToTranscriptionOnce(t *testing.T) {
	dl := &fakeDownloader{title: "Lecture"}
	stt := &fakeTranscriber{text: "hello everyone"}
	r, _, tmp := newResolver(t, dl, stt, nil)

	res, err := r.Resolve(context.Background(), "https://youtu.be/vid")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stt.calls != 1 {
		t.Fatalf("expected exactly one transcription, got %d", stt.calls)
	}
	if res.Source != SourceTranscription || res.Transcript != "hello everyone" {
		t.Fatalf("unexpected result %+v", res)
	}
	assertNoWorkspaces(t, tmp)
}

func TestResolveCaptionErrorFallsBack(t *testing.T) {
	dl := &fakeDownloader{title: "Lecture", captionErr: errors.New("HTTP Error 429")}
	stt := &fakeTranscriber{}
	r, _, _ := newResolver(t, dl, stt, nil)

	res, err := r.Resolve(context.Background(), "https://youtu.be/vid")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stt.calls != 1 || res.Transcript != whisperx.NoTranscription {
		t.Fatalf("expected fallback with placeholder, got calls=%d %+v", stt.calls, res)
	}
	if filepath.Dir(res.TranscriptPath) != res.Directory {
		t.Fatalf("transcript written outside the run directory: %s", res.TranscriptPath)
	}
}

func TestResolveTranscriptionFailureKeepsAudio(t *testing.T) {
	dl := &fakeDownloader{title: "Lecture"}
	stt := &fakeTranscriber{err: errors.New("whisperx crashed")}
	rec := &memRecorder{}
	r, _, _ := newResolver(t, dl, stt, rec)

	res, err := r.Resolve(context.Background(), "https://youtu.be/vid")
	if err != nil {
		t.Fatalf("transcription failure must not fail the request: %v", err)
	}
	if !res.TranscriptionFailed || !errors.Is(res.TranscriptionErr, ErrTranscriptionFailed) {
		t.Fatalf("expected TranscriptionFailed marker, got %+v", res)
	}
	if _, err := os.Stat(res.AudioPath); err != nil {
		t.Fatalf("audio should still be delivered: %v", err)
	}
	if len(rec.finished) != 1 || rec.finished[0].State != pipeline.StateDone || len(rec.finished[0].Failures) != 1 {
		t.Fatalf("unexpected run record %+v", rec.finished)
	}
}

func TestResolveTitleFallback(t *testing.T) {
	dl := &fakeDownloader{titleErr: errors.New("private video")}
	r, out, _ := newResolver(t, dl, &fakeTranscriber{}, nil)

	res, err := r.Resolve(context.Background(), "https://youtu.be/vid")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.AudioPath != filepath.Join(out, res.RunID, "audio_download.mp3") {
		t.Fatalf("expected default title, got %s", res.AudioPath)
	}
}

func TestResolveDownloadFailureIsError(t *testing.T) {
	dl := &fakeDownloader{title: "x", downloadErr: errors.New("Video unavailable")}
	stt := &fakeTranscriber{}
	rec := &memRecorder{}
	r, out, _ := newResolver(t, dl, stt, rec)

	_, err := r.Resolve(context.Background(), "https://youtu.be/vid")
	if err == nil {
		t.Fatal("expected download failure")
	}
	if stt.calls != 0 {
		t.Fatal("transcription must not run without audio")
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Fatalf("failed download left %d entries in the output root", len(entries))
	}
	if len(rec.finished) != 1 || rec.finished[0].State != pipeline.StateFailed {
		t.Fatalf("expected failed run recorded, got %+v", rec.finished)
	}
}

func TestResolveRejectsBadURL(t *testing.T) {
	dl := &fakeDownloader{}
	r, _, _ := newResolver(t, dl, &fakeTranscriber{}, nil)

	for _, u := range []string{"", "   ", "ftp://youtu.be/x"} {
		if _, err := r.Resolve(context.Background(), u); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Resolve(%q): expected validation error, got %v", u, err)
		}
	}
	if dl.downloads != 0 {
		t.Fatal("no download expected for rejected input")
	}
}

func TestResolveRunsWriteSeparateFiles(t *testing.T) {
	dl := &fakeDownloader{titleErr: errors.New("private video")}
	r, out, _ := newResolver(t, dl, &fakeTranscriber{}, nil)

	first, err := r.Resolve(context.Background(), "https://youtu.be/one")
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), "https://youtu.be/two")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if first.AudioPath == second.AudioPath || first.TranscriptPath == second.TranscriptPath {
		t.Fatalf("runs share output files: %s / %s", first.AudioPath, second.AudioPath)
	}
	for _, res := range []Result{first, second} {
		if _, err := os.Stat(res.AudioPath); err != nil {
			t.Fatalf("audio for run %s missing: %v", res.RunID, err)
		}
		if filepath.Dir(res.AudioPath) != filepath.Join(out, res.RunID) {
			t.Fatalf("audio not under run directory: %s", res.AudioPath)
		}
	}
}

package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"storyvox/internal/gateway"
	"storyvox/internal/services"
)

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestExecCapturesStdout(t *testing.T) {
	stub := writeStub(t, t.TempDir(), "echoer", `echo "hello $1"`)
	gw := gateway.New()

	out, err := gw.Exec(context.Background(), gateway.OpTranscript, stub, "world")
	if err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	if strings.TrimSpace(string(out.Stdout)) != "hello world" {
		t.Fatalf("unexpected stdout %q", out.Stdout)
	}
}

func TestExecMissingBinaryIsUnavailable(t *testing.T) {
	gw := gateway.New()
	_, err := gw.Exec(context.Background(), gateway.OpDownload, "storyvox-definitely-missing-binary")
	if err == nil {
		t.Fatal("expected error")
	}
	if !gateway.IsUnavailable(err) {
		t.Fatalf("expected unavailable kind, got %v", err)
	}
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected unavailable marker, got %v", err)
	}
}

func TestExecNonZeroExitIsExternalFailure(t *testing.T) {
	stub := writeStub(t, t.TempDir(), "failing", "echo 'line one' >&2\necho 'Invalid data found' >&2\nexit 3")
	gw := gateway.New()

	_, err := gw.Exec(context.Background(), gateway.OpConcatenation, stub)
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if gwErr.Kind != gateway.KindExternalFailure {
		t.Fatalf("expected external failure, got %v", gwErr.Kind)
	}
	if !strings.Contains(gwErr.Detail, "Invalid data found") {
		t.Fatalf("expected stderr tail in detail, got %q", gwErr.Detail)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
}

func TestExecAppliesOperationTimeout(t *testing.T) {
	stub := writeStub(t, t.TempDir(), "slow", "exec sleep 5")
	gw := gateway.New(gateway.WithTimeouts(map[string]time.Duration{"transcription": 50 * time.Millisecond}))

	started := time.Now()
	_, err := gw.Exec(context.Background(), gateway.OpTranscription, stub)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if time.Since(started) > 4*time.Second {
		t.Fatal("expected process to be killed at the time limit")
	}
	if gw.Timeout(gateway.OpDownload) != 0 {
		t.Fatal("expected unset operations to have no limit")
	}
}

func TestExecWritesToolLog(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "tool")
	gw := gateway.New(
		gateway.WithToolLogDir(logDir),
		gateway.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
			return []byte("out"), []byte("warn: something"), nil
		}),
	)
	if _, err := gw.Exec(context.Background(), gateway.OpConcatenation, "/usr/bin/ffmpeg", "-i", "list.txt"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	entries, err := os.ReadDir(logDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one tool log, got %v (err=%v)", entries, err)
	}
	if !strings.HasSuffix(entries[0].Name(), "-ffmpeg.log") {
		t.Fatalf("unexpected tool log name %q", entries[0].Name())
	}
	data, _ := os.ReadFile(filepath.Join(logDir, entries[0].Name()))
	for _, fragment := range []string{"command: /usr/bin/ffmpeg -i list.txt", "warn: something"} {
		if !strings.Contains(string(data), fragment) {
			t.Fatalf("expected %q in tool log %q", fragment, data)
		}
	}
}

func TestFetchClassifiesResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("fine"))
		case "/busy":
			w.Header().Set("Retry-After", "2")
			http.Error(w, "slow down", http.StatusTooManyRequests)
		default:
			http.Error(w, "broken", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	gw := gateway.New()
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/ok", nil)
	resp, err := gw.Fetch(context.Background(), gateway.OpFetch, req)
	if err != nil {
		t.Fatalf("Fetch ok: %v", err)
	}
	if string(resp.Body) != "fine" {
		t.Fatalf("unexpected body %q", resp.Body)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/busy", nil)
	_, err = gw.Fetch(context.Background(), gateway.OpGeneration, req)
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if gwErr.Kind != gateway.KindExternalFailure || gwErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected classification %+v", gwErr)
	}
	if gwErr.RetryAfter != 2*time.Second {
		t.Fatalf("expected retry-after hint, got %v", gwErr.RetryAfter)
	}
	if gateway.StatusCode(err) != http.StatusTooManyRequests {
		t.Fatalf("expected StatusCode helper to report 429")
	}
}

func TestFetchUnreachableHostIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw := gateway.New()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	_, err := gw.Fetch(context.Background(), gateway.OpSynthesis, req)
	if !gateway.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestReasonFlattensAndTruncates(t *testing.T) {
	long := errors.New("line one\nline two " + strings.Repeat("x", 400))
	reason := gateway.Reason(long)
	if strings.Contains(reason, "\n") {
		t.Fatalf("expected single line, got %q", reason)
	}
	if len(reason) > 310 {
		t.Fatalf("expected truncation, got %d chars", len(reason))
	}
	if gateway.Reason(nil) != "" {
		t.Fatal("expected empty reason for nil")
	}
}

func TestReasonKeepsMultibyteRunesWhole(t *testing.T) {
	// Each rune is three bytes, so a 300-byte cut lands mid-rune for a one-byte prefix.
	msg := "x" + strings.Repeat("翻译失败", 100)
	reason := gateway.Reason(errors.New(msg))
	if !utf8.ValidString(reason) {
		t.Fatalf("reason is not valid UTF-8: %q", reason)
	}
	if !strings.HasSuffix(reason, "...") || len(reason) > 303 {
		t.Fatalf("expected truncated reason, got %d bytes", len(reason))
	}
}

func TestFetchErrorDetailIsValidUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "x"+strings.Repeat("服务不可用", 80), http.StatusBadGateway)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
	_, err := gateway.New().Fetch(context.Background(), gateway.OpGeneration, req)
	if err == nil {
		t.Fatal("expected failure status")
	}
	if !utf8.ValidString(err.Error()) {
		t.Fatalf("error detail is not valid UTF-8: %q", err.Error())
	}
}

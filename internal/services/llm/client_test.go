package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storyvox/internal/gateway"
	"storyvox/internal/services"
)

type scene struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func completionHandler(t *testing.T, choice map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{"choices": []any{choice}}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func noSleep(time.Duration) {}

func TestCompleteTextSendsPromptsAndHeaders(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if ref := r.Header.Get("HTTP-Referer"); ref != "https://example.com" {
			t.Errorf("unexpected referer %q", ref)
		}
		if title := r.Header.Get("X-Title"); title != "storyvox" {
			t.Errorf("unexpected title %q", title)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		completionHandler(t, map[string]any{
			"message": map[string]any{"content": "  Once upon a time.  "},
		})(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Referer: "https://example.com", Title: "storyvox"})
	text, err := client.CompleteText(context.Background(), "be brief", "a story about a fox", 0.8)
	if err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	if text != "Once upon a time." {
		t.Fatalf("unexpected text %q", text)
	}
	if got.Model != "demo-model" || got.Temperature != 0.8 {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "a story about a fox" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if got.ResponseFormat != nil {
		t.Fatalf("text completion must not request JSON mode")
	}
}

func TestCompleteTextOmitsEmptySystemPrompt(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		completionHandler(t, map[string]any{"message": map[string]any{"content": "ok"}})(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	if _, err := client.CompleteText(context.Background(), "  ", "hello", 0.3); err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestCompleteTextRequiresKeyAndPrompt(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if client.Configured() {
		t.Fatal("client without key must not report configured")
	}
	if _, err := client.CompleteText(context.Background(), "", "hi", 0); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	keyed := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	if _, err := keyed.CompleteText(context.Background(), "", "   ", 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("health check must request JSON mode, got %+v", req.ResponseFormat)
		}
		completionHandler(t, map[string]any{
			"message": map[string]any{"content": "```json\n{\"ok\":true}\n```"},
		})(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, map[string]any{
		"message": map[string]any{"content": `{"ok":false}`},
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	err := client.HealthCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unexpected response") {
		t.Fatalf("expected unexpected response error, got %v", err)
	}
}

func TestClientAcceptsDeltaAndLegacyText(t *testing.T) {
	cases := map[string]map[string]any{
		"delta":  {"delta": map[string]any{"content": "from delta"}},
		"legacy": {"text": "from text"},
	}
	for name, choice := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(completionHandler(t, choice))
			defer server.Close()

			client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
			text, err := client.CompleteText(context.Background(), "", "prompt", 0)
			if err != nil {
				t.Fatalf("CompleteText: %v", err)
			}
			if !strings.HasPrefix(text, "from ") {
				t.Fatalf("unexpected text %q", text)
			}
		})
	}
}

func TestClientEmptyContentReportsSnippet(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		completionHandler(t, map[string]any{
			"finish_reason": "length",
			"message":       map[string]any{"content": "", "refusal": "no"},
		})(w, r)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithAttempts(2),
		WithBackoff(0, 0),
		WithSleeper(noSleep),
	)
	_, err := client.CompleteText(context.Background(), "", "prompt", 0)
	if err == nil {
		t.Fatal("expected empty content error")
	}
	for _, want := range []string{"failed after 2 attempts", `finish_reason="length"`, `refusal="no"`, "response_snippet="} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = `{"type":"narration","text":"third time"}`
		}
		completionHandler(t, map[string]any{
			"finish_reason": "stop",
			"message":       map[string]any{"content": content},
		})(w, r)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithBackoff(0, 0),
		WithSleeper(noSleep),
	)
	raw, err := client.CompleteText(context.Background(), "", "prompt", 0)
	if err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	var parsed scene
	if err := DecodeLLMJSON(raw, &parsed); err != nil || parsed.Text != "third time" {
		t.Fatalf("unexpected reply %q (%v)", raw, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		completionHandler(t, map[string]any{"message": map[string]any{"content": "ok"}})(w, r)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithBackoff(0, 10*time.Second),
	)
	if _, err := client.CompleteText(context.Background(), "", "prompt", 0); err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(noSleep))
	_, err := client.CompleteText(context.Background(), "", "prompt", 0)
	if err == nil {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if gateway.StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected status to survive wrapping, got %v", err)
	}
}

func TestClientUnreachableIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: endpoint}, WithSleeper(noSleep))
	_, err := client.CompleteText(context.Background(), "", "prompt", 0)
	if !gateway.IsUnavailable(err) {
		t.Fatalf("expected unavailable classification, got %v", err)
	}
	if services.HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 mapping, got %d", services.HTTPStatus(err))
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := retryPolicy{attempts: 5, base: time.Second, max: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := p.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDecodeLLMJSONExtractsEmbeddedObject(t *testing.T) {
	var parsed scene
	err := DecodeLLMJSON("Sure! Here is the scene:\n{\"type\":\"narration\",\"text\":\"x\"}\nEnjoy.", &parsed)
	if err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if parsed.Type != "narration" {
		t.Fatalf("unexpected scene %+v", parsed)
	}

	var lines []scene
	if err := DecodeLLMJSON("```json\n[{\"type\":\"a\",\"text\":\"b\"}]\n```", &lines); err != nil || len(lines) != 1 {
		t.Fatalf("fenced array: %+v %v", lines, err)
	}
	if err := DecodeLLMJSON("   ", &parsed); err == nil {
		t.Fatal("expected empty payload error")
	}
	if err := DecodeLLMJSON("no json here", &parsed); err == nil {
		t.Fatal("expected decode error")
	}
}

package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyvox/internal/config"
	"storyvox/internal/pipeline"
)

const userAgent = "storyvox/0.1.0"

// Service publishes run outcomes. It satisfies pipeline.Recorder so it can be
// chained next to the run store.
type Service interface {
	pipeline.Recorder
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

// RunStarted is silent; only outcomes are pushed.
func (n *ntfyService) RunStarted(context.Context, pipeline.RunRecord) error { return nil }

func (n *ntfyService) RunFinished(ctx context.Context, rec pipeline.RunRecord) error {
	return n.send(ctx, runPayload(rec))
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "storyvox - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"storyvox", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func runPayload(rec pipeline.RunRecord) payload {
	kind := strings.TrimSpace(rec.Kind)
	if kind == "" {
		kind = "run"
	}
	duration := rec.FinishedAt.Sub(rec.StartedAt).Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	if rec.State == pipeline.StateFailed {
		message := fmt.Sprintf("❌ %s run %s failed after %s", kind, rec.ID, duration)
		if reason := strings.TrimSpace(rec.Error); reason != "" {
			message += ": " + reason
		}
		return payload{
			title:    "storyvox - Run Failed",
			message:  message,
			tags:     []string{"storyvox", kind, "failed"},
			priority: "high",
		}
	}

	var message string
	title := "storyvox - Run Complete"
	if len(rec.Failures) == 0 {
		message = fmt.Sprintf("✅ %s run %s complete: %d items in %s", kind, rec.ID, rec.Succeeded, duration)
	} else {
		title = "storyvox - Run Complete (with errors)"
		message = fmt.Sprintf("%s run %s complete: %d succeeded, %d failed in %s",
			kind, rec.ID, rec.Succeeded, len(rec.Failures), duration)
	}
	if out := strings.TrimSpace(rec.Output); out != "" {
		message = fmt.Sprintf("%s\nOutput: %s", message, out)
	}
	return payload{
		title:   title,
		message: message,
		tags:    []string{"storyvox", kind, "completed"},
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) RunStarted(context.Context, pipeline.RunRecord) error  { return nil }
func (noopService) RunFinished(context.Context, pipeline.RunRecord) error { return nil }
func (noopService) TestNotification(context.Context) error                { return nil }

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storyvox/internal/gateway"
	"storyvox/internal/services"
)

const (
	defaultEndpoint    = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 120 * time.Second
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps an OpenRouter-compatible chat completion API. Every attempt is
// a single gateway invocation; retries happen here, never in the gateway.
type Client struct {
	cfg   Config
	gw    *gateway.Gateway
	http  *http.Client
	retry retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithGateway routes requests through a shared gateway so they pick up its
// per-operation time limits and failure classification.
func WithGateway(gw *gateway.Gateway) Option {
	return func(c *Client) { c.gw = gw }
}

// WithHTTPClient sets the HTTP client of the private gateway built when no
// shared gateway is supplied.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithAttempts caps the number of attempts per completion. Values below one
// mean a single attempt.
func WithAttempts(n int) Option {
	return func(c *Client) { c.retry.attempts = max(n, 1) }
}

// WithBackoff overrides the exponential backoff bounds.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = base
		c.retry.max = maxDelay
	}
}

// WithSleeper replaces the retry wait, for tests.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleep = sleep }
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		http:  &http.Client{Timeout: timeout},
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = defaultEndpoint
	}
	if c.gw == nil {
		c.gw = gateway.New(gateway.WithHTTPClient(c.http))
	}
	return c
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// CompleteText sends one system/user exchange and returns the reply text.
// An empty system prompt sends the user message alone.
func (c *Client) CompleteText(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "prompt is empty", nil)
	}
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "llm", "complete", "API key not configured", nil)
	}
	req := chatRequest{Model: c.cfg.Model, Temperature: temperature}
	if systemPrompt = strings.TrimSpace(systemPrompt); systemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: userPrompt})
	return c.complete(ctx, req, "complete")
}

// HealthCheck asks the model for a fixed JSON reply to prove the key, model,
// and endpoint all work.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, "llm", "health", "API key not configured", nil)
	}
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You must respond with JSON only."},
			{Role: "user", Content: `Respond with {"ok":true}`},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	content, err := c.complete(ctx, req, "health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func (c *Client) complete(ctx context.Context, req chatRequest, op string) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("llm %s: encode request: %w", op, err)
	}

	attempt := 0
	for {
		attempt++
		var content string
		if content, err = c.send(ctx, body, op); err == nil {
			return content, nil
		}
		wait, ok := c.retry.next(ctx, err, attempt)
		if !ok {
			break
		}
		if waitErr := c.retry.wait(ctx, wait); waitErr != nil {
			return "", waitErr
		}
	}
	if attempt > 1 {
		return "", fmt.Errorf("llm %s: failed after %d attempts: %w", op, attempt, err)
	}
	return "", err
}

func (c *Client) send(ctx context.Context, body []byte, op string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm %s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.gw.Fetch(ctx, gateway.OpGeneration, req)
	if err != nil {
		return "", err
	}
	var decoded chatResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", fmt.Errorf("llm %s: decode response: %w", op, err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("llm %s: provider error: %s", op, strings.TrimSpace(decoded.Error.Message))
	}
	content, finish, refusal := decoded.reply()
	if content == "" {
		return "", &emptyReplyError{op: op, choices: len(decoded.Choices), finish: finish, refusal: refusal, snippet: snippet(string(resp.Body))}
	}
	return content, nil
}

// Package replicate is a minimal client for Replicate's model predictions API,
// used for text-to-image generation.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storyvox/internal/gateway"
	"storyvox/internal/services"
)

const (
	DefaultBaseURL       = "https://api.replicate.com/v1"
	DefaultModel         = "black-forest-labs/flux-schnell"
	DefaultSeed          = 1234
	DefaultSteps         = 4
	DefaultGuidanceScale = 7.5

	defaultPollInterval = 2 * time.Second
)

// Config captures the Replicate account and model settings.
type Config struct {
	APIToken       string
	BaseURL        string
	Model          string
	Seed           int
	InferenceSteps int
	GuidanceScale  float64
}

// Client creates predictions through the gateway. Every HTTP call is a single
// gateway invocation.
type Client struct {
	cfg          Config
	gw           *gateway.Gateway
	pollInterval time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithPollInterval overrides how often a pending prediction is re-read.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewClient builds a Client, filling unset fields with the flux-schnell
// defaults.
func NewClient(cfg Config, gw *gateway.Gateway, opts ...Option) *Client {
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	if cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model = strings.Trim(strings.TrimSpace(cfg.Model), "/"); cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.InferenceSteps <= 0 {
		cfg.InferenceSteps = DefaultSteps
	}
	if cfg.GuidanceScale <= 0 {
		cfg.GuidanceScale = DefaultGuidanceScale
	}
	if gw == nil {
		gw = gateway.New()
	}
	c := &Client{cfg: cfg, gw: gw, pollInterval: defaultPollInterval}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API token is available.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIToken != ""
}

// Seed returns the seed used when a request leaves it unset.
func (c *Client) Seed() int {
	if c.cfg.Seed != 0 {
		return c.cfg.Seed
	}
	return DefaultSeed
}

type predictionInput struct {
	Prompt            string  `json:"prompt"`
	Seed              int     `json:"seed"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (p prediction) pending() bool {
	switch p.Status {
	case "starting", "processing":
		return true
	default:
		return false
	}
}

// GenerateImage runs the configured model for prompt and returns the URL of
// the first generated image. seed <= 0 selects the configured default.
func (c *Client) GenerateImage(ctx context.Context, prompt string, seed int) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrValidation, "replicate", "generate", "prompt is required", nil)
	}
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "replicate", "generate", "replicate api token not configured", nil)
	}
	if seed <= 0 {
		seed = c.Seed()
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "models", c.cfg.Model, "predictions")
	if err != nil {
		return "", fmt.Errorf("replicate: build url: %w", err)
	}
	body, err := json.Marshal(map[string]any{"input": predictionInput{
		Prompt:            prompt,
		Seed:              seed,
		NumInferenceSteps: c.cfg.InferenceSteps,
		GuidanceScale:     c.cfg.GuidanceScale,
	}})
	if err != nil {
		return "", fmt.Errorf("replicate: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("replicate: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	pred, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	for pred.pending() && pred.URLs.Get != "" {
		if err := sleep(ctx, c.pollInterval); err != nil {
			return "", err
		}
		poll, err := http.NewRequestWithContext(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return "", fmt.Errorf("replicate: poll request: %w", err)
		}
		if pred, err = c.send(ctx, poll); err != nil {
			return "", err
		}
	}
	if pred.Status == "failed" || pred.Status == "canceled" {
		return "", fmt.Errorf("replicate: prediction %s %s: %v", pred.ID, pred.Status, pred.Error)
	}
	return ParseImageURL(pred.Output)
}

func (c *Client) send(ctx context.Context, req *http.Request) (prediction, error) {
	var pred prediction
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	resp, err := c.gw.Fetch(ctx, gateway.OpImage, req)
	if err != nil {
		return pred, fmt.Errorf("replicate: %w", err)
	}
	if err := json.Unmarshal(resp.Body, &pred); err != nil {
		return pred, fmt.Errorf("replicate: decode prediction: %w", err)
	}
	return pred, nil
}

// ErrNoImageURL is returned when a prediction output holds no usable URL.
var ErrNoImageURL = errors.New("no valid image URL in API response")

// ParseImageURL extracts the first image URL from a prediction output, which
// models return as an array of URLs, a bare URL, or an object carrying the URL
// under output, urls.get, url, or image.
func ParseImageURL(raw json.RawMessage) (string, error) {
	var decoded any
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", ErrNoImageURL
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("replicate: decode output: %w", err)
	}
	candidate := findURL(decoded)
	if candidate == "" {
		return "", ErrNoImageURL
	}
	if !strings.HasPrefix(candidate, "http") {
		return "", fmt.Errorf("invalid image URL format: %q", candidate)
	}
	return candidate, nil
}

func findURL(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		if len(val) > 0 {
			return findURL(val[0])
		}
	case map[string]any:
		if out, ok := val["output"]; ok {
			if u := findURL(out); u != "" {
				return u
			}
		}
		if urls, ok := val["urls"].(map[string]any); ok {
			if u := findURL(urls["get"]); u != "" {
				return u
			}
		}
		for _, key := range []string{"url", "image"} {
			if u := findURL(val[key]); u != "" {
				return u
			}
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

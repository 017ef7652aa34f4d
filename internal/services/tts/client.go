// Package tts is the client for a Kokoro-compatible speech synthesis server
// exposing the OpenAI-style /v1/audio/speech endpoint.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"storyvox/internal/gateway"
	"storyvox/internal/services"
)

// Config captures the speech server settings.
type Config struct {
	BaseURL        string
	Model          string
	DefaultVoice   string
	ResponseFormat string
}

// Client synthesizes speech through the gateway.
type Client struct {
	cfg Config
	gw  *gateway.Gateway
}

// NewClient builds a Client.
func NewClient(cfg Config, gw *gateway.Gateway) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Model == "" {
		cfg.Model = "kokoro"
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = DefaultVoice
	}
	if cfg.ResponseFormat == "" {
		cfg.ResponseFormat = "wav"
	}
	if gw == nil {
		gw = gateway.New()
	}
	return &Client{cfg: cfg, gw: gw}
}

// DefaultVoice returns the voice used when a request names none.
func (c *Client) DefaultVoice() string { return c.cfg.DefaultVoice }

// Format returns the audio container the server is asked to produce.
func (c *Client) Format() string { return c.cfg.ResponseFormat }

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize renders text with voice and returns the encoded audio.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "tts", "synthesize", "text is required", nil)
	}
	if strings.TrimSpace(voice) == "" {
		voice = c.cfg.DefaultVoice
	}
	v, err := LookupVoice(voice)
	if err != nil {
		return nil, err
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "v1", "audio", "speech")
	if err != nil {
		return nil, fmt.Errorf("tts: build url: %w", err)
	}
	body, err := json.Marshal(speechRequest{
		Model:          c.cfg.Model,
		Input:          text,
		Voice:          v.ID,
		ResponseFormat: c.cfg.ResponseFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.gw.Fetch(ctx, gateway.OpSynthesis, req)
	if err != nil {
		return nil, fmt.Errorf("tts: %w", err)
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("tts: empty audio response")
	}
	return resp.Body, nil
}

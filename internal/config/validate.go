package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateReplicate(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"server.max_concurrent_runs":    c.Server.MaxConcurrentRuns,
		"cleanup.stale_hours":           c.Cleanup.StaleHours,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	for key, value := range map[string]string{
		"paths.output_dir": c.Paths.OutputDir,
		"paths.temp_dir":   c.Paths.TempDir,
		"paths.state_dir":  c.Paths.StateDir,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if c.Paths.OutputDir == c.Paths.TempDir {
		return errors.New("paths.temp_dir must differ from paths.output_dir")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	for key, value := range map[string]string{
		"tts.base_url":       c.TTS.BaseURL,
		"llm.base_url":       c.LLM.BaseURL,
		"replicate.base_url": c.Replicate.BaseURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", key)
		}
	}
	if topic := strings.TrimSpace(c.Notifications.NtfyTopic); topic != "" {
		if parsed, err := url.Parse(topic); err != nil || parsed.Scheme == "" {
			return errors.New("notifications.ntfy_topic must be a full URL (e.g. https://ntfy.sh/storyvox)")
		}
	}
	return nil
}

func (c *Config) validateReplicate() error {
	if c.Replicate.RequestsPerMinute < 0 {
		return errors.New("replicate.requests_per_minute must be >= 0")
	}
	if c.Replicate.Seed < 0 {
		return errors.New("replicate.seed must be >= 0")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	for key, value := range map[string]int{
		"timeouts.synthesis":     c.Timeouts.Synthesis,
		"timeouts.concatenation": c.Timeouts.Concatenation,
		"timeouts.download":      c.Timeouts.Download,
		"timeouts.transcript":    c.Timeouts.Transcript,
		"timeouts.transcription": c.Timeouts.Transcription,
		"timeouts.generation":    c.Timeouts.Generation,
		"timeouts.image":         c.Timeouts.Image,
		"timeouts.fetch":         c.Timeouts.Fetch,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	TempDir   string `toml:"temp_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// TTS contains configuration for the speech synthesis server.
type TTS struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	DefaultVoice   string `toml:"default_voice"`
	ResponseFormat string `toml:"response_format"`
}

// LLM contains connection settings for the content generation provider.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Replicate contains configuration for image generation.
type Replicate struct {
	APIToken          string  `toml:"api_token"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	Seed              int     `toml:"seed"`
	InferenceSteps    int     `toml:"num_inference_steps"`
	GuidanceScale     float64 `toml:"guidance_scale"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
}

// Tools names the external binaries invoked through the gateway.
type Tools struct {
	FFmpeg        string `toml:"ffmpeg"`
	YTDLP         string `toml:"ytdlp"`
	WhisperX      string `toml:"whisperx"`
	WhisperXModel string `toml:"whisperx_model"`
}

// Timeouts holds optional per-operation limits in seconds. Zero disables the limit.
type Timeouts struct {
	Synthesis     int `toml:"synthesis"`
	Concatenation int `toml:"concatenation"`
	Download      int `toml:"download"`
	Transcript    int `toml:"transcript"`
	Transcription int `toml:"transcription"`
	Generation    int `toml:"generation"`
	Image         int `toml:"image"`
	Fetch         int `toml:"fetch"`
}

// Server contains HTTP API settings.
type Server struct {
	MaxConcurrentRuns int      `toml:"max_concurrent_runs"`
	AllowedOrigins    []string `toml:"allowed_origins"`
}

// Cleanup contains stale workspace pruning settings.
type Cleanup struct {
	StaleHours int `toml:"stale_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for storyvox.
type Config struct {
	Paths         Paths         `toml:"paths"`
	TTS           TTS           `toml:"tts"`
	LLM           LLM           `toml:"llm"`
	Replicate     Replicate     `toml:"replicate"`
	Tools         Tools         `toml:"tools"`
	Timeouts      Timeouts      `toml:"timeouts"`
	Server        Server        `toml:"server"`
	Cleanup       Cleanup       `toml:"cleanup"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("storyvox.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the server and CLI write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.TempDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RunStorePath returns the sqlite database path for run history.
func (c *Config) RunStorePath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// LockPath returns the lock file held by a running server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "storyvox.lock")
}

// ToolLogDir returns the directory that receives per-invocation tool logs.
func (c *Config) ToolLogDir() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "tool")
}

// StaleAge returns the age after which leftover temp workspaces are pruned.
func (c *Config) StaleAge() time.Duration {
	return time.Duration(c.Cleanup.StaleHours) * time.Hour
}

// OperationTimeouts returns the configured per-operation limits keyed by
// operation name. Operations without a limit are omitted.
func (c *Config) OperationTimeouts() map[string]time.Duration {
	values := map[string]int{
		"synthesis":     c.Timeouts.Synthesis,
		"concatenation": c.Timeouts.Concatenation,
		"download":      c.Timeouts.Download,
		"transcript":    c.Timeouts.Transcript,
		"transcription": c.Timeouts.Transcription,
		"generation":    c.Timeouts.Generation,
		"image":         c.Timeouts.Image,
		"fetch":         c.Timeouts.Fetch,
	}
	out := make(map[string]time.Duration, len(values))
	for name, seconds := range values {
		if seconds > 0 {
			out[name] = time.Duration(seconds) * time.Second
		}
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package config

const (
	defaultConfigPath        = "~/.config/storyvox/config.toml"
	defaultOutputDir         = "~/.local/share/storyvox/output"
	defaultTempDir           = "~/.local/share/storyvox/temp"
	defaultLogDir            = "~/.local/share/storyvox/logs"
	defaultStateDir          = "~/.local/share/storyvox/state"
	defaultAPIBind           = "127.0.0.1:3000"
	defaultTTSBaseURL        = "http://127.0.0.1:8880"
	defaultTTSModel          = "kokoro"
	defaultVoice             = "af_nicole"
	defaultTTSResponseFormat = "wav"
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMReferer        = "https://github.com/storyvox/storyvox"
	defaultLLMTitle          = "storyvox"
	defaultLLMTimeoutSeconds = 60
	defaultReplicateBaseURL  = "https://api.replicate.com/v1"
	defaultReplicateModel    = "black-forest-labs/flux-schnell"
	defaultReplicateSeed     = 1234
	defaultReplicateSteps    = 4
	defaultReplicateGuidance = 7.5
	defaultReplicateRPM      = 30
	defaultFFmpegBinary      = "ffmpeg"
	defaultYTDLPBinary       = "yt-dlp"
	defaultWhisperXBinary    = "whisperx"
	defaultWhisperXModel     = "medium.en"
	defaultMaxConcurrentRuns = 4
	defaultStaleHours        = 24
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
)

var defaultAllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			TempDir:   defaultTempDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
			APIBind:   defaultAPIBind,
		},
		TTS: TTS{
			BaseURL:        defaultTTSBaseURL,
			Model:          defaultTTSModel,
			DefaultVoice:   defaultVoice,
			ResponseFormat: defaultTTSResponseFormat,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Replicate: Replicate{
			BaseURL:           defaultReplicateBaseURL,
			Model:             defaultReplicateModel,
			Seed:              defaultReplicateSeed,
			InferenceSteps:    defaultReplicateSteps,
			GuidanceScale:     defaultReplicateGuidance,
			RequestsPerMinute: defaultReplicateRPM,
		},
		Tools: Tools{
			FFmpeg:        defaultFFmpegBinary,
			YTDLP:         defaultYTDLPBinary,
			WhisperX:      defaultWhisperXBinary,
			WhisperXModel: defaultWhisperXModel,
		},
		Server: Server{
			MaxConcurrentRuns: defaultMaxConcurrentRuns,
			AllowedOrigins:    append([]string(nil), defaultAllowedOrigins...),
		},
		Cleanup: Cleanup{
			StaleHours: defaultStaleHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

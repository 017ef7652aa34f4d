package whisperx

// Config captures runtime settings for WhisperX transcription.
type Config struct {
	// Binary is the whisperx executable name or path.
	Binary string
	// Model is the WhisperX model to use (e.g., "medium.en").
	Model string
}

// WhisperX configuration constants.
const (
	DefaultBinary = "whisperx"
	DefaultModel  = "medium.en"
	OutputFormat  = "txt"

	// NoTranscription is the text recorded when whisperx ran but produced nothing.
	NoTranscription = "No transcription found"
)

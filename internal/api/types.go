package api

import (
	"storyvox/internal/gallery"
	"storyvox/internal/runstore"
	"storyvox/internal/storygen"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type sectionRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type generateRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type generateResponse struct {
	Success   bool   `json:"success"`
	AudioData []byte `json:"audioData"`
}

type mergeRequest struct {
	Sections []sectionRequest `json:"sections"`
}

type youtubeRequest struct {
	YouTubeURL string `json:"youtubeUrl"`
}

type youtubeResponse struct {
	Success             bool   `json:"success"`
	Title               string `json:"title,omitempty"`
	FilePath            string `json:"filePath"`
	TranscriptPath      string `json:"transcriptPath,omitempty"`
	TranscriptSource    string `json:"transcriptSource"`
	TranscriptionFailed bool   `json:"transcriptionFailed"`
	TranscriptionError  string `json:"transcriptionError,omitempty"`
}

type storyRequest struct {
	Theme string `json:"theme"`
}

type storyResponse struct {
	Success bool   `json:"success"`
	Story   string `json:"story"`
}

type scriptRequest struct {
	Story string `json:"story"`
}

type podcastRequest struct {
	Topic string `json:"topic"`
}

type podcastResponse struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
}

type podcastScriptRequest struct {
	Content string `json:"content"`
}

type podcastScriptResponse struct {
	Success bool                  `json:"success"`
	Script  []storygen.DialogLine `json:"script"`
}

type imagePromptRequest struct {
	Text    string `json:"text"`
	Context string `json:"context"`
}

type imagePromptResponse struct {
	Success bool   `json:"success"`
	Prompt  string `json:"prompt"`
}

type imageRequest struct {
	Prompt    string `json:"prompt"`
	SectionID any    `json:"sectionId"`
	Seed      *int   `json:"seed"`
}

type imageResponse struct {
	Success   bool   `json:"success"`
	ImageURL  string `json:"imageUrl"`
	SectionID any    `json:"sectionId"`
}

type allImagesRequest struct {
	Sections []storygen.Section `json:"sections"`
}

type downloadImagesRequest struct {
	Images []gallery.Image `json:"images"`
	Theme  string          `json:"theme"`
}

type downloadImagesResponse struct {
	Success     bool   `json:"success"`
	Directory   string `json:"directory"`
	TotalImages int    `json:"totalImages"`
	Saved       int    `json:"saved"`
	Failed      int    `json:"failed"`
}

type translateRequest struct {
	Script string `json:"script"`
}

type translateResponse struct {
	Success     bool   `json:"success"`
	Translation string `json:"translation"`
}

type runsResponse struct {
	Success bool           `json:"success"`
	Runs    []runstore.Run `json:"runs"`
}

type healthResponse struct {
	Status      string `json:"status"`
	RunningRuns int    `json:"runningRuns"`
	Capacity    int    `json:"capacity"`
}

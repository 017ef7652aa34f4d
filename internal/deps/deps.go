package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"storyvox/internal/config"
)

// Requirement names an external binary a pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a requirement resolved. Path is the resolved
// executable when Available is true.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// Tools lists the binaries configured under [tools]. WhisperX is optional
// because captions usually make transcription unnecessary.
func Tools(tools config.Tools) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: tools.FFmpeg, Description: "Required for merging audio sections"},
		{Name: "yt-dlp", Command: tools.YTDLP, Description: "Required for YouTube audio and captions"},
		{Name: "WhisperX", Command: tools.WhisperX, Description: "Transcribes audio when no captions exist", Optional: true},
	}
}

// CheckBinaries resolves each requirement on PATH, in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, resolve(req))
	}
	return results
}

func resolve(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

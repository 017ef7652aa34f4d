package api

import (
	"net/http"
	"strings"

	"storyvox/internal/gateway"
	"storyvox/internal/logging"
	"storyvox/internal/pipeline"
	"storyvox/internal/services/tts"
)

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, tts.Voices())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.svc.Speech == nil {
		s.unavailable(w, "speech synthesis")
		return
	}
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = s.opts.DefaultVoice
	}
	audio, err := s.svc.Speech.Synthesize(r.Context(), req.Text, voice)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, generateResponse{Success: true, AudioData: audio})
}

// handleMerge synthesizes every non-blank section and streams progress while
// the run merges them into one file.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if s.svc.Merge == nil {
		s.unavailable(w, "audio merge")
		return
	}
	var req mergeRequest
	if !s.decode(w, r, &req) {
		return
	}
	items := make([]pipeline.Item, 0, len(req.Sections))
	for i, sec := range req.Sections {
		if strings.TrimSpace(sec.Text) == "" {
			continue
		}
		items = append(items, pipeline.Item{Index: i, Text: sec.Text, Voice: strings.TrimSpace(sec.Voice)})
	}
	if len(items) == 0 {
		s.writeError(w, http.StatusBadRequest, pipeline.ErrNoItems.Error())
		return
	}

	s.admit(w, func() {
		em := s.openStream(w, r)
		if _, err := s.svc.Merge.Execute(r.Context(), items, em); err != nil {
			em.Emit(pipeline.ErrorEvent(err))
		}
	})
}

func (s *Server) handleYouTube(w http.ResponseWriter, r *http.Request) {
	if s.svc.YouTube == nil {
		s.unavailable(w, "YouTube ingestion")
		return
	}
	var req youtubeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.YouTubeURL) == "" {
		s.writeError(w, http.StatusBadRequest, "YouTube URL is required")
		return
	}

	s.admit(w, func() {
		res, err := s.svc.YouTube.Resolve(r.Context(), req.YouTubeURL)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "youtube ingestion failed", "youtube_failed",
				logging.Error(err),
			)
			s.writeFailure(w, err)
			return
		}
		resp := youtubeResponse{
			Success:             true,
			Title:               res.Title,
			FilePath:            s.publicPath(res.AudioPath),
			TranscriptPath:      s.publicPath(res.TranscriptPath),
			TranscriptSource:    string(res.Source),
			TranscriptionFailed: res.TranscriptionFailed,
		}
		if res.TranscriptionErr != nil {
			resp.TranscriptionError = gateway.Reason(res.TranscriptionErr)
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}

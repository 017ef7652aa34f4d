package api

import (
	"net/http"
	"strings"

	"storyvox/internal/gateway"
	"storyvox/internal/pipeline"
	"storyvox/internal/services"
)

func (s *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	if s.svc.Writer == nil {
		s.unavailable(w, "content generation")
		return
	}
	var req storyRequest
	if !s.decode(w, r, &req) {
		return
	}
	story, err := s.svc.Writer.Story(r.Context(), req.Theme)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, storyResponse{Success: true, Story: story})
}

// handleScript streams status updates while a story is converted into
// narration and dialogue scenes.
func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	if s.svc.Writer == nil {
		s.unavailable(w, "content generation")
		return
	}
	var req scriptRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Story) == "" {
		s.writeError(w, http.StatusBadRequest, "Story is required")
		return
	}

	em := s.openStream(w, r)
	em.Emit(pipeline.StatusEvent("Converting story to script..."))
	script, err := s.svc.Writer.Script(r.Context(), req.Story)
	if err != nil {
		em.Emit(pipeline.ErrorEvent(err))
		return
	}
	em.Emit(pipeline.StatusEvent("Processing script format..."))
	em.Emit(pipeline.Event{Type: pipeline.EventComplete, Success: pipeline.BoolPtr(true), Script: script})
}

func (s *Server) handlePodcast(w http.ResponseWriter, r *http.Request) {
	if s.svc.Writer == nil {
		s.unavailable(w, "content generation")
		return
	}
	var req podcastRequest
	if !s.decode(w, r, &req) {
		return
	}
	content, err := s.svc.Writer.PodcastOutline(r.Context(), req.Topic)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, podcastResponse{Success: true, Content: content})
}

func (s *Server) handlePodcastScript(w http.ResponseWriter, r *http.Request) {
	if s.svc.Writer == nil {
		s.unavailable(w, "content generation")
		return
	}
	var req podcastScriptRequest
	if !s.decode(w, r, &req) {
		return
	}
	lines, err := s.svc.Writer.PodcastScript(r.Context(), req.Content)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, podcastScriptResponse{Success: true, Script: lines})
}

func (s *Server) handleImagePrompt(w http.ResponseWriter, r *http.Request) {
	if s.svc.Writer == nil {
		s.unavailable(w, "content generation")
		return
	}
	var req imagePromptRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	prompt, err := s.svc.Writer.ImagePrompt(r.Context(), req.Text, req.Context)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, imagePromptResponse{Success: true, Prompt: prompt})
}

func (s *Server) handleTranslatePodcast(w http.ResponseWriter, r *http.Request) {
	s.translate(w, r, func(req translateRequest) (string, error) {
		return s.svc.Writer.TranslatePodcast(r.Context(), req.Script)
	})
}

func (s *Server) handleTranslateStory(w http.ResponseWriter, r *http.Request) {
	s.translate(w, r, func(req translateRequest) (string, error) {
		return s.svc.Writer.TranslateStoryScript(r.Context(), req.Script)
	})
}

func (s *Server) translate(w http.ResponseWriter, r *http.Request, fn func(translateRequest) (string, error)) {
	if s.svc.Writer == nil {
		s.unavailable(w, "content generation")
		return
	}
	var req translateRequest
	if !s.decode(w, r, &req) {
		return
	}
	translation, err := fn(req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, translateResponse{Success: true, Translation: translation})
}

// writeFailure answers with the status mapped from err's classification.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	s.writeError(w, services.HTTPStatus(err), gateway.Reason(err))
}

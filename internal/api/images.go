package api

import (
	"net/http"
	"strings"

	"storyvox/internal/pipeline"
)

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if s.svc.Images == nil {
		s.unavailable(w, "image generation")
		return
	}
	var req imageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	}
	seed := s.opts.DefaultSeed
	if req.Seed != nil {
		seed = *req.Seed
	}
	url, err := s.svc.Images.GenerateImage(r.Context(), req.Prompt, seed)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, imageResponse{Success: true, ImageURL: url, SectionID: req.SectionID})
}

// handleAllImages streams context analysis, prompt, and image progress for a
// whole story.
func (s *Server) handleAllImages(w http.ResponseWriter, r *http.Request) {
	if s.svc.Illustrator == nil {
		s.unavailable(w, "image generation")
		return
	}
	var req allImagesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Sections) == 0 {
		s.writeError(w, http.StatusBadRequest, "Sections are required")
		return
	}

	s.admit(w, func() {
		em := s.openStream(w, r)
		if _, err := s.svc.Illustrator.GenerateAll(r.Context(), req.Sections, em); err != nil {
			// GenerateAll already emitted its terminal event; this covers
			// failures raised before the stream started.
			em.Emit(pipeline.ErrorEvent(err))
		}
	})
}

func (s *Server) handleDownloadImages(w http.ResponseWriter, r *http.Request) {
	if s.svc.Gallery == nil {
		s.unavailable(w, "image download")
		return
	}
	var req downloadImagesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Images) == 0 {
		s.writeError(w, http.StatusBadRequest, "Images are required")
		return
	}

	s.admit(w, func() {
		summary, err := s.svc.Gallery.Aggregate(r.Context(), req.Images, req.Theme)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, downloadImagesResponse{
			Success:     true,
			Directory:   s.publicPath(summary.Directory),
			TotalImages: summary.TotalImages,
			Saved:       summary.Saved,
			Failed:      summary.Failed,
		})
	})
}

package api

import (
	"net/http"
	"strconv"
)

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.svc.Runs == nil {
		s.unavailable(w, "run history")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.svc.Runs.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, runsResponse{Success: true, Runs: runs})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		RunningRuns: s.pool.Running(),
		Capacity:    s.pool.Cap(),
	})
}

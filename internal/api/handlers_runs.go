package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"autotask/internal/core"
	"autotask/internal/store"

	"github.com/go-chi/chi/v5"
)

type runResponse struct {
	ID        string  `json:"id"`
	TaskName  string  `json:"task_name"`
	Trigger   string  `json:"trigger"`
	Status    string  `json:"status"`
	Output    string  `json:"output,omitempty"`
	Error     *string `json:"error,omitempty"`
	StartedAt string  `json:"started_at"`
	EndedAt   string  `json:"ended_at"`
}

func runToResponse(rec *core.RunRecord) runResponse {
	return runResponse{
		ID:        rec.ID,
		TaskName:  rec.TaskName,
		Trigger:   string(rec.Trigger),
		Status:    string(rec.Status),
		Output:    rec.Output,
		Error:     rec.Error,
		StartedAt: rec.StartedAt.UTC().Format(time.RFC3339Nano),
		EndedAt:   rec.EndedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "taskName")
	if _, err := s.manager.GetTask(name); err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	recs, err := s.store.ListRuns(r.Context(), name, limit, offset)
	if err != nil {
		s.logger.Error("list runs", "task", name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list runs")
		return
	}
	resp := make([]runResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, runToResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rec, err := s.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run", "run_id", runID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, runToResponse(rec))
}

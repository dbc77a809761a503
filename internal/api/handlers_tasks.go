package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"autotask/internal/core"

	"github.com/go-chi/chi/v5"
)

type createTaskRequest struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	TimeoutSecs int    `json:"timeout_s,omitempty"`
	WorkingDir  string `json:"working_dir,omitempty"`
}

type scheduleTaskRequest struct {
	At          string `json:"at,omitempty"`
	IntervalSec int    `json:"interval_s,omitempty"`
	Repeat      bool   `json:"repeat,omitempty"`
	Cron        string `json:"cron,omitempty"`
}

type taskResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Result      any      `json:"result,omitempty"`
	Error       string   `json:"error,omitempty"`
	CreatedAt   string   `json:"created_at"`
	StartedAt   *string  `json:"started_at,omitempty"`
	CompletedAt *string  `json:"completed_at,omitempty"`
	DurationSec *float64 `json:"duration_s,omitempty"`
}

type scheduleResponse struct {
	Task        string `json:"task"`
	At          string `json:"at"`
	IntervalSec int    `json:"interval_s,omitempty"`
	Repeat      bool   `json:"repeat"`
	Cron        string `json:"cron,omitempty"`
}

func taskToResponse(task *core.Task) taskResponse {
	resp := taskResponse{
		Name:        task.Name,
		Description: task.Description,
		Status:      string(task.Status()),
		Result:      task.Result(),
		Error:       task.Err(),
		CreatedAt:   task.CreatedAt().UTC().Format(time.RFC3339Nano),
	}
	if started, ok := task.StartedAt(); ok {
		s := started.UTC().Format(time.RFC3339Nano)
		resp.StartedAt = &s
	}
	if completed, ok := task.CompletedAt(); ok {
		s := completed.UTC().Format(time.RFC3339Nano)
		resp.CompletedAt = &s
	}
	if d, ok := task.Duration(); ok {
		secs := d.Seconds()
		resp.DurationSec = &secs
	}
	return resp
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.manager.Tasks()
	resp := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, taskToResponse(task))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Command = strings.TrimSpace(req.Command)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "name is required")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "command is required")
		return
	}
	if req.TimeoutSecs < 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "timeout_s must be non-negative")
		return
	}

	timeout := time.Duration(req.TimeoutSecs) * time.Second
	task := s.manager.CreateCommandTask(req.Name, req.Command, timeout, strings.TrimSpace(req.WorkingDir), req.Description)
	writeJSON(w, http.StatusCreated, taskToResponse(task))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.manager.GetTask(chi.URLParam(r, "taskName"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "taskName")
	_, err := s.manager.ExecuteTask(r.Context(), name)
	if errors.Is(err, core.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	// An execution failure is a task outcome, not a server error; the
	// response carries the failed status and error text.
	task, getErr := s.manager.GetTask(name)
	if getErr != nil {
		writeError(w, http.StatusNotFound, "not_found", getErr.Error())
		return
	}
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

func (s *Server) handleScheduleTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "taskName")
	var req scheduleTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	opts := core.ScheduleOptions{
		Every:  time.Duration(req.IntervalSec) * time.Second,
		Repeat: req.Repeat,
		Cron:   strings.TrimSpace(req.Cron),
	}
	if req.At != "" {
		at, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "at must be an RFC3339 timestamp")
			return
		}
		opts.At = at
	}

	entry, err := s.manager.ScheduleTask(name, opts)
	if errors.Is(err, core.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, scheduleResponse{
		Task:        entry.Task.Name,
		At:          entry.At.UTC().Format(time.RFC3339Nano),
		IntervalSec: int(entry.Every / time.Second),
		Repeat:      entry.Repeat,
		Cron:        entry.CronExpr,
	})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "taskName")
	cancelled, err := s.manager.CancelTask(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	status, _ := s.manager.GetTaskStatus(name)
	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": cancelled,
		"status":    string(status),
	})
}

package api

import (
	"net/http"
)

type schedulerResponse struct {
	Running bool     `json:"running"`
	Entries int      `json:"entries"`
	Pending []string `json:"pending"`
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	scheduler := s.manager.Scheduler()
	pending := scheduler.PendingTasks()
	names := make([]string, 0, len(pending))
	for _, entry := range pending {
		names = append(names, entry.Task.Name)
	}
	writeJSON(w, http.StatusOK, schedulerResponse{
		Running: scheduler.Running(),
		Entries: scheduler.Len(),
		Pending: names,
	})
}

func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	scheduler := s.manager.Scheduler()
	before := scheduler.Len()
	scheduler.ClearCompleted()
	writeJSON(w, http.StatusOK, map[string]int{
		"removed":   before - scheduler.Len(),
		"remaining": scheduler.Len(),
	})
}

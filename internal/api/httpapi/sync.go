package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/VaultTrack/internal/jobs"
)

type enqueuedResponse struct {
	TaskID string `json:"taskId"`
	Type   string `json:"type"`
	Queue  string `json:"queue"`
}

// handleSync queues catalog, prices or fingerprints on the worker.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeError(w, r, errUnavailable)
		return
	}
	info, err := jobs.Enqueue(r.Context(), s.deps.Jobs, chi.URLParam(r, "job"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueuedResponse{TaskID: info.ID, Type: info.Type, Queue: info.Queue})
}

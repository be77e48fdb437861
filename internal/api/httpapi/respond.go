package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/fingerprint"
	"github.com/BearBump/VaultTrack/internal/jobs"
	"github.com/BearBump/VaultTrack/internal/services/shipments"
	"github.com/BearBump/VaultTrack/internal/storage/pgvault"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusOf(err error) int {
	var ve *shipments.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, fingerprint.ErrUnreadableImage), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, pgvault.ErrNotFound), errors.Is(err, jobs.ErrUnknownJob):
		return http.StatusNotFound
	case errors.Is(err, pgvault.ErrDuplicate), errors.Is(err, asynq.ErrDuplicateTask):
		return http.StatusConflict
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var (
	errBadRequest  = errors.New("bad request")
	errUnavailable = errors.New("not configured")
)

func badRequest(msg string) error {
	return errors.Wrap(errBadRequest, msg)
}

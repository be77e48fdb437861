package httpapi

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BearBump/VaultTrack/internal/models"
)

const maxWebhookBody = 5 << 20

type webhookResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Matched  int    `json:"matched"`
	Updated  int    `json:"updated"`
	Notified int    `json:"notified"`
}

// handleWebhook always answers 200; the outcome is reported in the body.
func (s *Server) handleWebhook(provider string) http.HandlerFunc {
	adapter := s.adapters[provider]
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == models.ProviderShip24 {
			s.checkShip24Secret(r)
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			slog.Warn("read webhook body", "provider", provider, "error", err.Error())
			s.deps.Metrics.WebhookPayload(provider, "unreadable")
			writeJSON(w, http.StatusOK, webhookResponse{Status: "error", Message: "unreadable body"})
			return
		}

		updates, err := adapter.Normalize(body)
		if err != nil {
			slog.Warn("normalize webhook", "provider", provider, "error", err.Error())
			s.deps.Metrics.WebhookPayload(provider, "invalid")
			writeJSON(w, http.StatusOK, webhookResponse{Status: "error", Message: err.Error()})
			return
		}
		if len(updates) == 0 {
			s.deps.Metrics.WebhookPayload(provider, "empty")
			writeJSON(w, http.StatusOK, webhookResponse{Status: "ok", Message: "no trackings"})
			return
		}

		res := s.deps.Reconciler.ApplyAll(r.Context(), updates)
		outcome := "applied"
		if res.Failed > 0 {
			outcome = "partial"
		}
		s.deps.Metrics.WebhookPayload(provider, outcome)
		slog.Info("webhook applied", "provider", provider, "updates", len(updates),
			"matched", res.Matched, "updated", res.Updated, "notified", res.Notified, "failed", res.Failed)

		writeJSON(w, http.StatusOK, webhookResponse{
			Status:   "ok",
			Matched:  res.Matched,
			Updated:  res.Updated,
			Notified: res.Notified,
		})
	}
}

func (s *Server) checkShip24Secret(r *http.Request) {
	want := s.deps.Ship24WebhookSecret
	if want == "" {
		return
	}
	got := r.Header.Get("X-Ship24-Webhook-Secret")
	if got == "" {
		got = r.Header.Get("X-Webhook-Secret")
	}
	if got == "" {
		got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		s.deps.Metrics.WebhookPayload(models.ProviderShip24, "bad_secret")
		slog.Warn("ship24 webhook secret mismatch", "remote_addr", r.RemoteAddr, "has_secret", got != "")
	}
}

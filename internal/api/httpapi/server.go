// Package httpapi is the public HTTP surface of vault-api.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/BearBump/VaultTrack/internal/integrations/carrier"
	"github.com/BearBump/VaultTrack/internal/integrations/carrier/sendcloud"
	"github.com/BearBump/VaultTrack/internal/integrations/carrier/ship24"
	"github.com/BearBump/VaultTrack/internal/jobs"
	"github.com/BearBump/VaultTrack/internal/metrics"
	"github.com/BearBump/VaultTrack/internal/models"
	"github.com/BearBump/VaultTrack/internal/services/matching"
	"github.com/BearBump/VaultTrack/internal/services/reconciler"
)

const ownerHeader = "X-Owner-ID"

type Reconciler interface {
	ApplyAll(ctx context.Context, updates []models.CanonicalUpdate) reconciler.Result
}

type Shipments interface {
	Create(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error)
	Get(ctx context.Context, ownerID, id string) (*models.Shipment, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Shipment, error)
	Refresh(ctx context.Context, ownerID, id string) error
	RegisterTracking(ctx context.Context, ownerID, id, courierCode string) (*models.Shipment, error)
}

type Notifications interface {
	ListNotifications(ctx context.Context, ownerID string, limit int) ([]models.Notification, error)
}

type Matcher interface {
	Identify(ctx context.Context, image []byte) (matching.Identification, error)
}

type Deps struct {
	Reconciler    Reconciler
	Shipments     Shipments
	Notifications Notifications
	Matcher       Matcher
	Jobs          jobs.Enqueuer
	Metrics       *metrics.Metrics

	// Ship24WebhookSecret is compared against the request headers; a
	// mismatch is logged, never rejected.
	Ship24WebhookSecret string
	SwaggerPath         string
}

type Server struct {
	deps     Deps
	adapters map[string]carrier.Adapter
}

func New(deps Deps) *Server {
	return &Server{
		deps: deps,
		adapters: map[string]carrier.Adapter{
			models.ProviderShip24:    ship24.NewAdapter(),
			models.ProviderSendcloud: sendcloud.NewAdapter(),
		},
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.deps.Metrics.Handler())

	r.Post("/webhooks/ship24", s.handleWebhook(models.ProviderShip24))
	r.Post("/webhooks/sendcloud", s.handleWebhook(models.ProviderSendcloud))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/cards/fingerprint", s.handleFingerprint)
		r.Post("/cards/match", s.handleMatch)

		r.Route("/shipments", func(r chi.Router) {
			r.Get("/", s.handleListShipments)
			r.Post("/", s.handleCreateShipment)
			r.Get("/{id}", s.handleGetShipment)
			r.Post("/{id}/refresh", s.handleRefreshShipment)
			r.Post("/{id}/register-tracking", s.handleRegisterTracking)
		})
		r.Get("/notifications", s.handleListNotifications)
		r.Post("/sync/{job}", s.handleSync)
	})

	if s.deps.SwaggerPath != "" {
		path := s.deps.SwaggerPath
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, path)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(path); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}
	return r
}

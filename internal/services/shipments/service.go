package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/broker/messages"
	"github.com/BearBump/VaultTrack/internal/cache"
	"github.com/BearBump/VaultTrack/internal/integrations/carrier/ship24"
	"github.com/BearBump/VaultTrack/internal/models"
	"github.com/BearBump/VaultTrack/internal/services/reconciler"
)

const maxTrackingCodeLen = 64

type Repository interface {
	CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error)
	GetShipment(ctx context.Context, ownerID, id string) (*models.Shipment, error)
	ListShipments(ctx context.Context, ownerID string, limit, offset int) ([]*models.Shipment, error)
	SetShipmentTrackerID(ctx context.Context, id, trackerID string) error
	RefreshShipment(ctx context.Context, ownerID, id string) error
	RecordShipmentCheck(ctx context.Context, chk models.ShipmentCheck) error
}

// TrackerRegistrar creates an upstream tracker so pushes start arriving.
type TrackerRegistrar interface {
	RegisterTracker(ctx context.Context, trackingNumber, courierCode string) (ship24.Registration, error)
}

type Applier interface {
	ApplyForOwner(ctx context.Context, ownerID string, u models.CanonicalUpdate) reconciler.Result
}

// ValidationError is returned for bad client input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type Service struct {
	repo      Repository
	applier   Applier
	registrar TrackerRegistrar

	cache      cache.BytesCache
	currentTTL time.Duration

	providers map[string]bool
}

func New(repo Repository, applier Applier, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		applier:    applier,
		cache:      c,
		currentTTL: currentTTL,
		providers: map[string]bool{
			models.ProviderShip24:    true,
			models.ProviderSendcloud: true,
			models.ProviderFake:      true,
		},
	}
}

// WithRegistrar enables Ship24 tracker registration on create.
func (s *Service) WithRegistrar(r TrackerRegistrar) *Service {
	s.registrar = r
	return s
}

func (s *Service) Create(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	in.TrackingCode = strings.TrimSpace(in.TrackingCode)
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))

	if in.OwnerID == "" {
		return nil, invalid("owner is required")
	}
	if in.TrackingCode == "" || in.ProductName == "" {
		return nil, invalid("trackingCode, productName are required")
	}
	if len(in.TrackingCode) > maxTrackingCodeLen || strings.ContainsAny(in.TrackingCode, " \t\n/") {
		return nil, invalid("trackingCode %q is malformed", in.TrackingCode)
	}
	if in.Provider == "" {
		in.Provider = models.ProviderShip24
	}
	if !s.providers[in.Provider] {
		return nil, invalid("unknown provider %q", in.Provider)
	}

	sh, err := s.repo.CreateShipment(ctx, in)
	if err != nil {
		return nil, err
	}

	if in.Provider == models.ProviderShip24 && s.registrar != nil {
		// Регистрация трекера - best effort: поллер всё равно найдёт посылку поиском.
		if err := s.registerTracker(ctx, sh, in.CarrierCode); err != nil {
			slog.Warn("register ship24 tracker", "shipment_id", sh.ID, "tracking_code", sh.TrackingCode, "error", err.Error())
		}
	}
	return sh, nil
}

// RegisterTracking registers (or re-registers) the Ship24 tracker of an
// existing shipment.
func (s *Service) RegisterTracking(ctx context.Context, ownerID, id, courierCode string) (*models.Shipment, error) {
	if s.registrar == nil {
		return nil, errors.New("ship24 is not configured")
	}
	sh, err := s.repo.GetShipment(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.registerTracker(ctx, sh, courierCode); err != nil {
		return nil, err
	}
	s.invalidate(ctx, sh.ID)
	return sh, nil
}

func (s *Service) registerTracker(ctx context.Context, sh *models.Shipment, courierCode string) error {
	reg, err := s.registrar.RegisterTracker(ctx, sh.TrackingCode, courierCode)
	if err != nil {
		return err
	}
	if reg.TrackerID == "" {
		return nil
	}
	if err := s.repo.SetShipmentTrackerID(ctx, sh.ID, reg.TrackerID); err != nil {
		return err
	}
	sh.TrackerID = reg.TrackerID
	return nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*models.Shipment, error) {
	if id == "" {
		return nil, invalid("id is required")
	}
	if s.cacheEnabled() {
		if b, ok, err := s.cache.Get(ctx, currentKey(id)); err == nil && ok {
			var sh models.Shipment
			if json.Unmarshal(b, &sh) == nil && sh.OwnerID == ownerID {
				return &sh, nil
			}
		}
	}

	sh, err := s.repo.GetShipment(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if s.cacheEnabled() {
		s.storeCurrent(ctx, sh)
	}
	return sh, nil
}

func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Shipment, error) {
	return s.repo.ListShipments(ctx, ownerID, limit, offset)
}

// Refresh makes the shipment due for the next poll cycle.
func (s *Service) Refresh(ctx context.Context, ownerID, id string) error {
	if id == "" {
		return invalid("id is required")
	}
	return s.repo.RefreshShipment(ctx, ownerID, id)
}

// ApplyKafkaUpdate applies one poller result. The tracking update goes
// through the reconciler scoped to the shipment's owner; the check schedule
// is recorded either way.
func (s *Service) ApplyKafkaUpdate(ctx context.Context, msg messages.TrackingUpdated) error {
	if msg.ShipmentID == "" {
		return errors.New("shipment_id is required")
	}
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = time.Now().UTC()
	}
	if msg.NextCheckAt.IsZero() {
		// fallback: если воркер не прислал next_check_at, ставим "через час"
		msg.NextCheckAt = msg.CheckedAt.Add(60 * time.Minute)
	}

	chk := models.ShipmentCheck{
		ShipmentID:  msg.ShipmentID,
		CheckedAt:   msg.CheckedAt,
		NextCheckAt: msg.NextCheckAt,
		Error:       msg.Error,
	}
	if msg.Error == nil && msg.Update == nil {
		e := "empty tracking update"
		chk.Error = &e
	}

	if msg.Error == nil && msg.Update != nil {
		u := *msg.Update
		if u.TrackingCode == "" {
			u.TrackingCode = msg.TrackingCode
		}
		res := s.applier.ApplyForOwner(ctx, msg.OwnerID, u)
		if res.Failed > 0 {
			slog.Warn("tracking update partly failed", "shipment_id", msg.ShipmentID, "failed", res.Failed)
		}
	}

	if err := s.repo.RecordShipmentCheck(ctx, chk); err != nil {
		return err
	}
	s.invalidate(ctx, msg.ShipmentID)
	return nil
}

func (s *Service) storeCurrent(ctx context.Context, sh *models.Shipment) {
	b, err := json.Marshal(sh)
	if err != nil {
		slog.Warn("encode current shipment", "shipment_id", sh.ID, "error", err.Error())
		return
	}
	if err := s.cache.Set(ctx, currentKey(sh.ID), b, s.currentTTL); err != nil {
		slog.Warn("cache current shipment", "shipment_id", sh.ID, "error", err.Error())
	}
}

// InvalidateShipment drops the cached current view of a shipment. The
// reconciler calls it after every tracking write.
func (s *Service) InvalidateShipment(ctx context.Context, id string) {
	s.invalidate(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Delete(ctx, currentKey(id)); err != nil {
		slog.Warn("invalidate current shipment", "shipment_id", id, "error", err.Error())
	}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.currentTTL > 0
}

func currentKey(id string) string {
	return fmt.Sprintf("shipment:%s:current", id)
}

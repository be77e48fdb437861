package shipments

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/VaultTrack/internal/cache/rediscache"
	"github.com/BearBump/VaultTrack/internal/models"
	"github.com/BearBump/VaultTrack/internal/services/reconciler"
)

// memRepo backs both the shipment service and the reconciler.
type memRepo struct {
	mu sync.Mutex
	sh map[string]models.Shipment
}

func (m *memRepo) CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	panic("not used")
}

func (m *memRepo) GetShipment(ctx context.Context, ownerID, id string) (*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh := m.sh[id]
	return &sh, nil
}

func (m *memRepo) ListShipments(ctx context.Context, ownerID string, limit, offset int) ([]*models.Shipment, error) {
	return nil, nil
}

func (m *memRepo) SetShipmentTrackerID(ctx context.Context, id, trackerID string) error { return nil }

func (m *memRepo) RefreshShipment(ctx context.Context, ownerID, id string) error { return nil }

func (m *memRepo) RecordShipmentCheck(ctx context.Context, chk models.ShipmentCheck) error { return nil }

func (m *memRepo) FindShipmentsByTrackingCode(ctx context.Context, code string, limit int) ([]*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Shipment
	for _, sh := range m.sh {
		if sh.TrackingCode == code {
			cp := sh
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) FindOwnerShipmentsByTrackingCode(ctx context.Context, owner, code string, limit int) ([]*models.Shipment, error) {
	return m.FindShipmentsByTrackingCode(ctx, code, limit)
}

func (m *memRepo) UpdateShipmentTracking(ctx context.Context, upd models.ShipmentTrackingUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh := m.sh[upd.ShipmentID]
	sh.Status = upd.Status
	sh.History = upd.History
	m.sh[upd.ShipmentID] = sh
	return nil
}

func (m *memRepo) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	return n, nil
}

func TestGet_SeesWebhookUpdateImmediately(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := rediscache.New(mr.Addr())
	t.Cleanup(func() { _ = rc.Close() })

	repo := &memRepo{sh: map[string]models.Shipment{
		"s1": {ID: "s1", OwnerID: "u1", TrackingCode: "X", Status: models.MilestoneInTransit},
	}}
	rec := reconciler.New(repo, repo)
	svc := New(repo, rec, rc, 10*time.Minute)
	rec.WithInvalidator(svc)
	ctx := context.Background()

	sh, err := svc.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Equal(t, models.MilestoneInTransit, sh.Status)

	res := rec.Apply(ctx, models.CanonicalUpdate{TrackingCode: "X", Milestone: models.MilestoneDelivered})
	require.Equal(t, 1, res.Updated)

	sh, err = svc.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Equal(t, models.MilestoneDelivered, sh.Status)
}

package pgvault

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BearBump/VaultTrack/internal/fingerprint"
	"github.com/BearBump/VaultTrack/internal/models"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "vault_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	st, err := New("postgres://admin:admin@" + host + ":" + port.Port() + "/vault_test?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestPGVault_ShipmentFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	a, err := st.CreateShipment(ctx, models.ShipmentCreateInput{OwnerID: "u1", TrackingCode: "X", ProductName: "Charizard", Provider: models.ProviderShip24})
	require.NoError(t, err)
	_, err = st.CreateShipment(ctx, models.ShipmentCreateInput{OwnerID: "u2", TrackingCode: "X", Provider: models.ProviderShip24})
	require.NoError(t, err)
	_, err = st.CreateShipment(ctx, models.ShipmentCreateInput{OwnerID: "u1", TrackingCode: "X"})
	require.ErrorIs(t, err, ErrDuplicate)

	found, err := st.FindShipmentsByTrackingCode(ctx, "X", 5)
	require.NoError(t, err)
	require.Len(t, found, 2)

	// ровно одна посылка due
	_, err = st.db.Exec(ctx, `UPDATE shipments SET next_check_at = now() + interval '1 hour' WHERE owner_id = 'u2'`)
	require.NoError(t, err)

	now := time.Now().UTC().Add(time.Second)
	due, err := st.ClaimDueShipments(ctx, now, 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, a.ID, due[0].ID)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.UpdateShipmentTracking(ctx, models.ShipmentTrackingUpdate{
		ShipmentID: a.ID, Status: models.MilestoneDelivered,
		History: []models.TrackingEvent{{Status: "Delivered", OccurredAt: &at, Location: "Berlin"}},
	}))

	got, err := st.GetShipment(ctx, "u1", a.ID)
	require.NoError(t, err)
	require.Equal(t, models.MilestoneDelivered, got.Status)
	require.Len(t, got.History, 1)
	require.WithinDuration(t, at, *got.History[0].OccurredAt, time.Second)

	// доставленные больше не опрашиваются
	require.NoError(t, st.RefreshShipment(ctx, "u1", a.ID))
	due, err = st.ClaimDueShipments(ctx, time.Now().UTC().Add(time.Second), 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, due)

	_, err = st.CreateNotification(ctx, models.Notification{OwnerID: "u1", Type: models.NotificationTypeTrackingUpdate,
		Title: "Shipment update", Message: "Charizard: Delivered", ShipmentID: a.ID, TrackingCode: "X",
		OldStatus: models.MilestoneUnknown, NewStatus: models.MilestoneDelivered})
	require.NoError(t, err)
	ns, err := st.ListNotifications(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, ns, 1)
}

func TestPGVault_CatalogFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	n, err := st.UpsertCatalogEntries(ctx, []models.CatalogEntry{
		{BlueprintID: "1", Name: "Pikachu", Kind: models.KindSingle, ImageURL: "https://img/1.jpg"},
		{BlueprintID: "2", Name: "Eevee", Kind: models.KindSingle, ImageURL: "https://img/2.jpg"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	missing, err := st.ListEntriesWithoutFingerprint(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 2)

	fp := fingerprint.Fingerprint{1, 2, 3}
	require.NoError(t, st.SetFingerprint(ctx, "1", fp))
	fps, err := st.ListCatalogFingerprints(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]fingerprint.Fingerprint{"1": fp}, fps)

	// same image keeps the hash, a new image drops it
	_, err = st.UpsertCatalogEntries(ctx, []models.CatalogEntry{{BlueprintID: "1", Name: "Pikachu", Kind: models.KindSingle, ImageURL: "https://img/1.jpg"}})
	require.NoError(t, err)
	fps, _ = st.ListCatalogFingerprints(ctx)
	require.Len(t, fps, 1)
	_, err = st.UpsertCatalogEntries(ctx, []models.CatalogEntry{{BlueprintID: "1", Name: "Pikachu", Kind: models.KindSingle, ImageURL: "https://img/1b.jpg"}})
	require.NoError(t, err)
	fps, _ = st.ListCatalogFingerprints(ctx)
	require.Empty(t, fps)

	updated, err := st.UpdatePrices(ctx, []models.PriceUpdate{
		{BlueprintID: "2", Price: models.MarketPrice{Amount: decimal.RequireFromString("4.20"), Currency: "EUR", ListingCount: 3, UpdatedAt: time.Now()}},
		{BlueprintID: "999", Price: models.MarketPrice{Amount: decimal.RequireFromString("1.00"), Currency: "EUR"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	e, err := st.GetCatalogEntry(ctx, "2")
	require.NoError(t, err)
	require.NotNil(t, e.Price)
	require.True(t, e.Price.Amount.Equal(decimal.RequireFromString("4.2")))
	require.Equal(t, 3, e.Price.ListingCount)
}

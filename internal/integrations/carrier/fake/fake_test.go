package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/VaultTrack/internal/models"
)

func TestFakeClient_GetTracking(t *testing.T) {
	c := New()
	sh := &models.Shipment{TrackingCode: "A1", CarrierCode: "dhl"}

	res, err := c.GetTracking(context.Background(), sh)
	require.NoError(t, err)
	require.Equal(t, "A1", res.TrackingCode)
	require.Contains(t, []models.Milestone{models.MilestoneInTransit, models.MilestoneDelivered}, res.Milestone)
	require.Len(t, res.Events, 1)
	require.NotNil(t, res.Events[0].OccurredAt)

	again, err := c.GetTracking(context.Background(), sh)
	require.NoError(t, err)
	require.Equal(t, res.Milestone, again.Milestone)
}

func TestFakeClient_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().GetTracking(ctx, &models.Shipment{TrackingCode: "A1"})
	require.ErrorIs(t, err, context.Canceled)
}

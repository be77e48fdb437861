package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/BearBump/VaultTrack/internal/models"
)

// FakeClient answers without any network access. The milestone is derived
// from the tracking code so that runs are reproducible: roughly one code in
// five is delivered, the rest are in transit.
type FakeClient struct {
	now func() time.Time
}

func New() *FakeClient { return &FakeClient{now: time.Now} }

func (f *FakeClient) GetTracking(ctx context.Context, sh *models.Shipment) (models.CanonicalUpdate, error) {
	if err := ctx.Err(); err != nil {
		return models.CanonicalUpdate{}, err
	}
	now := f.now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(sh.CarrierCode))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(sh.TrackingCode))

	milestone, status := models.MilestoneInTransit, "In transit"
	if h.Sum32()%5 == 0 {
		milestone, status = models.MilestoneDelivered, "Delivered"
	}

	return models.CanonicalUpdate{
		TrackingCode:   sh.TrackingCode,
		Milestone:      milestone,
		CarrierCode:    sh.CarrierCode,
		Provider:       models.ProviderFake,
		ProviderStatus: status,
		LastEvent:      status,
		Events: []models.TrackingEvent{{
			Status:      status,
			Milestone:   milestone,
			OccurredAt:  &now,
			Description: "fake carrier update",
			CourierCode: sh.CarrierCode,
		}},
	}, nil
}

package models

import "time"

// Milestone is the carrier-agnostic shipment status.
type Milestone string

const (
	MilestonePending   Milestone = "pending"
	MilestoneInTransit Milestone = "inTransit"
	MilestoneDelivered Milestone = "delivered"
	MilestoneException Milestone = "exception"
	MilestoneCancelled Milestone = "cancelled"
	MilestoneUnknown   Milestone = "unknown"
)

// Providers that push or answer tracking data.
const (
	ProviderShip24    = "ship24"
	ProviderSendcloud = "sendcloud"
	ProviderFake      = "fake"
)

func (m Milestone) Valid() bool {
	switch m {
	case MilestonePending, MilestoneInTransit, MilestoneDelivered,
		MilestoneException, MilestoneCancelled, MilestoneUnknown:
		return true
	}
	return false
}

// Final reports whether the poller can stop checking a shipment in this state.
func (m Milestone) Final() bool {
	return m == MilestoneDelivered || m == MilestoneCancelled
}

type TrackingEvent struct {
	Status      string     `json:"status"`
	StatusCode  string     `json:"statusCode,omitempty"`
	Milestone   Milestone  `json:"statusMilestone,omitempty"`
	OccurredAt  *time.Time `json:"timestamp,omitempty"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	CourierCode string     `json:"courierCode,omitempty"`
}

// CanonicalUpdate is what every carrier adapter produces. Events is the full
// history as the carrier last reported it, not a delta.
type CanonicalUpdate struct {
	TrackingCode       string          `json:"trackingCode"`
	Milestone          Milestone       `json:"milestone"`
	Events             []TrackingEvent `json:"events"`
	CarrierCode        string          `json:"carrierCode,omitempty"`
	Provider           string          `json:"provider"`
	TrackerID          string          `json:"trackerId,omitempty"`
	ProviderStatus     string          `json:"providerStatus,omitempty"`
	ProviderStatusCode string          `json:"providerStatusCode,omitempty"`
	LastEvent          string          `json:"lastEvent,omitempty"`
	ExternalURL        string          `json:"externalUrl,omitempty"`
	EstimatedDelivery  string          `json:"estimatedDelivery,omitempty"`
	OriginCountry      string          `json:"originCountry,omitempty"`
	DestinationCountry string          `json:"destinationCountry,omitempty"`
}

package models

import "time"

type Shipment struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	TrackingCode string    `json:"trackingCode"`
	ProductName  string    `json:"productName"`
	Status       Milestone `json:"status"`

	Provider           string `json:"provider"`
	CarrierCode        string `json:"carrier,omitempty"`
	TrackerID          string `json:"trackerId,omitempty"`
	ProviderStatus     string `json:"providerStatus,omitempty"`
	ProviderStatusCode string `json:"providerStatusCode,omitempty"`
	ExternalURL        string `json:"externalTrackingUrl,omitempty"`
	LastEvent          string `json:"lastEvent,omitempty"`
	EstimatedDelivery  string `json:"estimatedDelivery,omitempty"`
	OriginCountry      string `json:"originCountry,omitempty"`
	DestinationCountry string `json:"destinationCountry,omitempty"`

	History []TrackingEvent `json:"trackingHistory"`

	LastCheckedAt  *time.Time `json:"lastCheckedAt,omitempty"`
	NextCheckAt    time.Time  `json:"nextCheckAt"`
	CheckFailCount int32      `json:"checkFailCount"`
	LastError      *string    `json:"lastError,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type ShipmentCreateInput struct {
	OwnerID      string
	TrackingCode string
	ProductName  string
	Provider     string
	CarrierCode  string
}

// ShipmentTrackingUpdate is the reconciler's write: status and history are
// replaced, never merged.
type ShipmentTrackingUpdate struct {
	ShipmentID         string
	Status             Milestone
	History            []TrackingEvent
	CarrierCode        string
	TrackerID          string
	ProviderStatus     string
	ProviderStatusCode string
	ExternalURL        string
	LastEvent          string
	EstimatedDelivery  string
	OriginCountry      string
	DestinationCountry string
}

// ShipmentCheck records the outcome of one poll for the scheduler.
type ShipmentCheck struct {
	ShipmentID  string
	CheckedAt   time.Time
	NextCheckAt time.Time
	Error       *string
}

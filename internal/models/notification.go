package models

import "time"

const NotificationTypeTrackingUpdate = "tracking_update"

type Notification struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	ShipmentID     string    `json:"shipmentId"`
	TrackingCode   string    `json:"trackingCode"`
	OldStatus      Milestone `json:"oldStatus"`
	NewStatus      Milestone `json:"newStatus"`
	ProviderStatus string    `json:"providerStatus,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

package messages

import (
	"time"

	"github.com/BearBump/VaultTrack/internal/models"
)

// TrackingUpdated is published by the poller after one provider check.
// Exactly one of Update and Error is set.
type TrackingUpdated struct {
	ShipmentID   string    `json:"shipment_id"`
	OwnerID      string    `json:"owner_id"`
	TrackingCode string    `json:"tracking_code"`
	Provider     string    `json:"provider"`
	CheckedAt    time.Time `json:"checked_at"`
	NextCheckAt  time.Time `json:"next_check_at"`

	Update *models.CanonicalUpdate `json:"update,omitempty"`
	Error  *string                 `json:"error,omitempty"`
}

// NotificationCreated fans a persisted notification out to push delivery.
type NotificationCreated struct {
	Notification models.Notification `json:"notification"`
}

package reconciler

import (
	"fmt"

	"github.com/BearBump/VaultTrack/internal/models"
)

const notificationTitle = "Shipment update"

var labels = map[models.Milestone]string{
	models.MilestonePending:   "Pending",
	models.MilestoneInTransit: "In transit",
	models.MilestoneDelivered: "Delivered",
	models.MilestoneException: "Problem",
	models.MilestoneCancelled: "Cancelled",
	models.MilestoneUnknown:   "Unknown",
}

func Label(m models.Milestone) string {
	if l, ok := labels[m]; ok {
		return l
	}
	return string(m)
}

// Transition applies u to sh. Status and history are replaced, not merged:
// carriers resend the full history on every push. Provenance fields keep
// their old value when the update does not carry one. A notification is
// returned only when the status actually changes.
func Transition(sh models.Shipment, u models.CanonicalUpdate) (models.Shipment, *models.Notification) {
	old := sh.Status
	next := u.Milestone
	if !next.Valid() {
		next = models.MilestoneUnknown
	}

	sh.Status = next
	sh.History = make([]models.TrackingEvent, len(u.Events))
	copy(sh.History, u.Events)

	sh.ProviderStatus = u.ProviderStatus
	sh.ProviderStatusCode = u.ProviderStatusCode
	sh.LastEvent = u.LastEvent
	setIfPresent(&sh.CarrierCode, u.CarrierCode)
	setIfPresent(&sh.TrackerID, u.TrackerID)
	setIfPresent(&sh.ExternalURL, u.ExternalURL)
	setIfPresent(&sh.EstimatedDelivery, u.EstimatedDelivery)
	setIfPresent(&sh.OriginCountry, u.OriginCountry)
	setIfPresent(&sh.DestinationCountry, u.DestinationCountry)

	if old == next {
		return sh, nil
	}

	subject := sh.ProductName
	if subject == "" {
		subject = sh.TrackingCode
	}
	return sh, &models.Notification{
		OwnerID:        sh.OwnerID,
		Type:           models.NotificationTypeTrackingUpdate,
		Title:          notificationTitle,
		Message:        fmt.Sprintf("%s: %s", subject, Label(next)),
		ShipmentID:     sh.ID,
		TrackingCode:   sh.TrackingCode,
		OldStatus:      old,
		NewStatus:      next,
		ProviderStatus: u.ProviderStatus,
		Read:           false,
	}
}

// TrackingUpdateOf is the store write for a shipment produced by Transition.
func TrackingUpdateOf(sh models.Shipment) models.ShipmentTrackingUpdate {
	return models.ShipmentTrackingUpdate{
		ShipmentID:         sh.ID,
		Status:             sh.Status,
		History:            sh.History,
		CarrierCode:        sh.CarrierCode,
		TrackerID:          sh.TrackerID,
		ProviderStatus:     sh.ProviderStatus,
		ProviderStatusCode: sh.ProviderStatusCode,
		ExternalURL:        sh.ExternalURL,
		LastEvent:          sh.LastEvent,
		EstimatedDelivery:  sh.EstimatedDelivery,
		OriginCountry:      sh.OriginCountry,
		DestinationCountry: sh.DestinationCountry,
	}
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

package ship24

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/integrations/carrier"
	"github.com/BearBump/VaultTrack/internal/models"
)

const trackingPageURL = "https://t.ship24.com/t/"

var milestones = map[string]models.Milestone{
	"pending":              models.MilestonePending,
	"info_received":        models.MilestonePending,
	"in_transit":           models.MilestoneInTransit,
	"out_for_delivery":     models.MilestoneInTransit,
	"available_for_pickup": models.MilestoneInTransit,
	"delivered":            models.MilestoneDelivered,
	"exception":            models.MilestoneException,
	"attempt_fail":         models.MilestoneException,
	"failed_attempt":       models.MilestoneException,
}

// MapMilestone maps a Ship24 statusMilestone onto the canonical set.
func MapMilestone(m string) models.Milestone {
	if v, ok := milestones[strings.ToLower(strings.TrimSpace(m))]; ok {
		return v
	}
	return models.MilestoneUnknown
}

type webhookPayload struct {
	Trackings []tracking `json:"trackings"`
}

type tracking struct {
	Tracker  tracker      `json:"tracker"`
	Shipment shipmentInfo `json:"shipment"`
	Events   []event      `json:"events"`
}

type tracker struct {
	TrackerID      string   `json:"trackerId"`
	TrackingNumber string   `json:"trackingNumber"`
	IsTracked      bool     `json:"isTracked"`
	CourierCode    []string `json:"courierCode"`
}

type shipmentInfo struct {
	StatusCode      string `json:"statusCode"`
	StatusCategory  string `json:"statusCategory"`
	StatusMilestone string `json:"statusMilestone"`
	OriginCountry   string `json:"originCountryCode"`
	DestCountry     string `json:"destinationCountryCode"`
	Delivery        struct {
		EstimatedDeliveryDate string `json:"estimatedDeliveryDate"`
	} `json:"delivery"`
}

type event struct {
	Status             string `json:"status"`
	StatusCode         string `json:"statusCode"`
	StatusMilestone    string `json:"statusMilestone"`
	OccurrenceDatetime string `json:"occurrenceDatetime"`
	Location           string `json:"location"`
	CourierCode        string `json:"courierCode"`
}

type Adapter struct{}

func NewAdapter() Adapter { return Adapter{} }

func (Adapter) Provider() string { return models.ProviderShip24 }

// Normalize parses a webhook push. One payload may carry several trackings.
func (Adapter) Normalize(payload []byte) ([]models.CanonicalUpdate, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "decode ship24 payload")
	}

	out := make([]models.CanonicalUpdate, 0, len(p.Trackings))
	for _, t := range p.Trackings {
		if strings.TrimSpace(t.Tracker.TrackingNumber) == "" {
			continue
		}
		out = append(out, toUpdate(t, ""))
	}
	return out, nil
}

func toUpdate(t tracking, fallbackCode string) models.CanonicalUpdate {
	code := strings.TrimSpace(t.Tracker.TrackingNumber)
	if code == "" {
		code = fallbackCode
	}

	events := make([]models.TrackingEvent, 0, len(t.Events))
	for _, e := range t.Events {
		status := e.Status
		if status == "" {
			status = "Unknown"
		}
		ev := models.TrackingEvent{
			Status:      status,
			StatusCode:  e.StatusCode,
			OccurredAt:  carrier.ParseTime(e.OccurrenceDatetime),
			Location:    e.Location,
			Description: e.Status,
			CourierCode: e.CourierCode,
		}
		if e.StatusMilestone != "" {
			ev.Milestone = MapMilestone(e.StatusMilestone)
		}
		events = append(events, ev)
	}

	// Ship24 lists events newest first.
	carrierCode, lastEvent := "", ""
	if len(t.Events) > 0 {
		carrierCode = t.Events[0].CourierCode
		lastEvent = t.Events[0].Status
	} else if len(t.Tracker.CourierCode) > 0 {
		carrierCode = t.Tracker.CourierCode[0]
	}

	providerStatus := t.Shipment.StatusMilestone
	if providerStatus == "" {
		providerStatus = string(models.MilestoneUnknown)
	}

	return models.CanonicalUpdate{
		TrackingCode:       code,
		Milestone:          MapMilestone(t.Shipment.StatusMilestone),
		Events:             events,
		CarrierCode:        carrierCode,
		Provider:           models.ProviderShip24,
		TrackerID:          t.Tracker.TrackerID,
		ProviderStatus:     providerStatus,
		ProviderStatusCode: t.Shipment.StatusCode,
		LastEvent:          lastEvent,
		ExternalURL:        trackingPageURL + code,
		EstimatedDelivery:  t.Shipment.Delivery.EstimatedDeliveryDate,
		OriginCountry:      t.Shipment.OriginCountry,
		DestinationCountry: t.Shipment.DestCountry,
	}
}

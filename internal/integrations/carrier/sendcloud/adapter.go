package sendcloud

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/integrations/carrier"
	"github.com/BearBump/VaultTrack/internal/models"
)

// Sendcloud parcel status ids. Ids missing here, 999 included, map to unknown.
var statuses = map[int]models.Milestone{
	1:    models.MilestonePending, // announced
	99:   models.MilestonePending, // ready to send
	2000: models.MilestonePending, // label printed

	3:  models.MilestoneInTransit,
	4:  models.MilestoneInTransit,
	5:  models.MilestoneInTransit,
	6:  models.MilestoneInTransit,
	8:  models.MilestoneInTransit,
	22: models.MilestoneInTransit,
	31: models.MilestoneInTransit,
	32: models.MilestoneInTransit,
	62: models.MilestoneInTransit,

	11: models.MilestoneDelivered,

	12:   models.MilestoneException, // delivery attempt failed
	92:   models.MilestoneException,
	1000: models.MilestoneException, // error
	1001: models.MilestoneException, // returned

	80: models.MilestoneCancelled,
}

func MapStatus(id int) models.Milestone {
	if m, ok := statuses[id]; ok {
		return m
	}
	return models.MilestoneUnknown
}

type webhookPayload struct {
	Action    string          `json:"action"`
	Timestamp json.RawMessage `json:"timestamp"`
	Parcel    parcel          `json:"parcel"`
}

type parcel struct {
	ID             int64         `json:"id"`
	TrackingNumber string        `json:"tracking_number"`
	TrackingURL    string        `json:"tracking_url"`
	Status         status        `json:"status"`
	Carrier        carrierInfo   `json:"carrier"`
	ToAddress      address       `json:"to_address"`
	Country        country       `json:"country"`
	UpdatedAt      string        `json:"updated_at"`
	StatusHistory  []historyItem `json:"status_history"`
}

type status struct {
	ID      int    `json:"id"`
	Message string `json:"message"`
}

type carrierInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type address struct {
	City string `json:"city"`
}

type country struct {
	ISO2 string `json:"iso_2"`
}

type historyItem struct {
	Status      *status `json:"status"`
	ID          int     `json:"id"`
	Message     string  `json:"message"`
	Created     string  `json:"created"`
	Timestamp   string  `json:"timestamp"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
}

type Adapter struct{}

func NewAdapter() Adapter { return Adapter{} }

func (Adapter) Provider() string { return models.ProviderSendcloud }

// Normalize parses a parcel status push. A body without an action is the
// verification ping and yields no updates.
func (Adapter) Normalize(payload []byte) ([]models.CanonicalUpdate, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "decode sendcloud payload")
	}
	if p.Action == "" || strings.TrimSpace(p.Parcel.TrackingNumber) == "" {
		return nil, nil
	}

	at := parseTimestamp(p.Timestamp)
	return []models.CanonicalUpdate{toUpdate(p.Parcel, at)}, nil
}

func toUpdate(pc parcel, at *time.Time) models.CanonicalUpdate {
	msg := pc.Status.Message
	if msg == "" {
		msg = "Unknown"
	}

	var events []models.TrackingEvent
	if len(pc.StatusHistory) > 0 {
		events = make([]models.TrackingEvent, 0, len(pc.StatusHistory))
		for _, h := range pc.StatusHistory {
			events = append(events, historyEvent(h, pc.Carrier.Code))
		}
	} else {
		if at == nil {
			at = carrier.ParseTime(pc.UpdatedAt)
		}
		events = []models.TrackingEvent{{
			Status:      msg,
			StatusCode:  codeString(pc.Status.ID),
			Milestone:   MapStatus(pc.Status.ID),
			OccurredAt:  at,
			Location:    pc.ToAddress.City,
			Description: msg,
			CourierCode: pc.Carrier.Code,
		}}
	}

	trackerID := ""
	if pc.ID != 0 {
		trackerID = strconv.FormatInt(pc.ID, 10)
	}

	return models.CanonicalUpdate{
		TrackingCode:       strings.TrimSpace(pc.TrackingNumber),
		Milestone:          MapStatus(pc.Status.ID),
		Events:             events,
		CarrierCode:        pc.Carrier.Code,
		Provider:           models.ProviderSendcloud,
		TrackerID:          trackerID,
		ProviderStatus:     msg,
		ProviderStatusCode: codeString(pc.Status.ID),
		LastEvent:          msg,
		ExternalURL:        pc.TrackingURL,
		DestinationCountry: pc.Country.ISO2,
	}
}

func historyEvent(h historyItem, courier string) models.TrackingEvent {
	id, msg := h.ID, h.Message
	if h.Status != nil {
		if h.Status.ID != 0 {
			id = h.Status.ID
		}
		if h.Status.Message != "" {
			msg = h.Status.Message
		}
	}
	if msg == "" {
		msg = "Unknown"
	}
	desc := h.Description
	if desc == "" {
		desc = msg
	}
	ts := h.Created
	if ts == "" {
		ts = h.Timestamp
	}
	return models.TrackingEvent{
		Status:      msg,
		StatusCode:  codeString(id),
		Milestone:   MapStatus(id),
		OccurredAt:  carrier.ParseTime(ts),
		Location:    h.Location,
		Description: desc,
		CourierCode: courier,
	}
}

// parseTimestamp accepts epoch milliseconds or a date string.
func parseTimestamp(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return carrier.ParseTime(s)
	}
	return nil
}

func codeString(id int) string {
	if id == 0 {
		return ""
	}
	return strconv.Itoa(id)
}

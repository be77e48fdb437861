package ship24

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/models"
)

const DefaultBaseURL = "https://api.ship24.com/public/v1"

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type Registration struct {
	TrackerID      string
	TrackingNumber string
	IsTracked      bool
	CourierCodes   []string
}

type trackerResp struct {
	Data struct {
		Tracker tracker `json:"tracker"`
	} `json:"data"`
}

type trackingsResp struct {
	Data struct {
		Trackings []tracking `json:"trackings"`
	} `json:"data"`
}

// RegisterTracker creates a tracker upstream so that pushes start arriving.
func (c *Client) RegisterTracker(ctx context.Context, trackingNumber, courierCode string) (Registration, error) {
	body := map[string]any{"trackingNumber": trackingNumber}
	if courierCode != "" {
		body["courierCode"] = []string{courierCode}
	}

	var r trackerResp
	if err := c.do(ctx, http.MethodPost, "/trackers", body, &r); err != nil {
		return Registration{}, err
	}

	reg := Registration{
		TrackerID:      r.Data.Tracker.TrackerID,
		TrackingNumber: r.Data.Tracker.TrackingNumber,
		IsTracked:      r.Data.Tracker.IsTracked,
		CourierCodes:   r.Data.Tracker.CourierCode,
	}
	if reg.TrackingNumber == "" {
		reg.TrackingNumber = trackingNumber
	}
	return reg, nil
}

// GetTracking looks the shipment up by tracker id, then by tracking number.
// When Ship24 knows nothing yet a tracker is registered and a pending update
// is returned; the next poll picks up the results.
func (c *Client) GetTracking(ctx context.Context, sh *models.Shipment) (models.CanonicalUpdate, error) {
	var trackings []tracking

	if sh.TrackerID != "" {
		var r trackingsResp
		err := c.do(ctx, http.MethodGet, "/trackers/"+url.PathEscape(sh.TrackerID)+"/results", nil, &r)
		if err != nil {
			return models.CanonicalUpdate{}, err
		}
		trackings = r.Data.Trackings
	}

	if len(trackings) == 0 {
		var r trackingsResp
		err := c.do(ctx, http.MethodPost, "/trackers/search", map[string]string{"trackingNumber": sh.TrackingCode}, &r)
		if err != nil {
			return models.CanonicalUpdate{}, err
		}
		trackings = r.Data.Trackings
	}

	if len(trackings) == 0 {
		upd := models.CanonicalUpdate{
			TrackingCode:   sh.TrackingCode,
			Milestone:      models.MilestonePending,
			Provider:       models.ProviderShip24,
			TrackerID:      sh.TrackerID,
			ProviderStatus: string(models.MilestonePending),
			ExternalURL:    trackingPageURL + sh.TrackingCode,
			Events:         sh.History,
		}
		if sh.TrackerID == "" {
			reg, err := c.RegisterTracker(ctx, sh.TrackingCode, sh.CarrierCode)
			if err != nil {
				return models.CanonicalUpdate{}, err
			}
			upd.TrackerID = reg.TrackerID
		}
		return upd, nil
	}

	return toUpdate(trackings[0], sh.TrackingCode), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ship24 %s %s: http %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

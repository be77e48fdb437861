package sendcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/models"
)

const DefaultBaseURL = "https://panel.sendcloud.sc/api/v2"

var ErrParcelNotFound = errors.New("parcel not found on sendcloud")

type Client struct {
	baseURL   string
	publicKey string
	secretKey string
	httpc     *http.Client
}

func New(baseURL, publicKey, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		publicKey: publicKey,
		secretKey: secretKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetTracking fetches the parcel by its Sendcloud id when known, otherwise
// searches by tracking number.
func (c *Client) GetTracking(ctx context.Context, sh *models.Shipment) (models.CanonicalUpdate, error) {
	var pc *parcel

	if sh.TrackerID != "" {
		var r struct {
			Parcel *parcel `json:"parcel"`
		}
		found, err := c.get(ctx, "/parcels/"+url.PathEscape(sh.TrackerID), nil, &r)
		if err != nil {
			return models.CanonicalUpdate{}, err
		}
		if found {
			pc = r.Parcel
		}
	}

	if pc == nil && sh.TrackingCode != "" {
		var r struct {
			Parcels []parcel `json:"parcels"`
		}
		q := url.Values{"tracking_number": {sh.TrackingCode}}
		if _, err := c.get(ctx, "/parcels", q, &r); err != nil {
			return models.CanonicalUpdate{}, err
		}
		for i := range r.Parcels {
			if r.Parcels[i].TrackingNumber == sh.TrackingCode {
				pc = &r.Parcels[i]
				break
			}
		}
		if pc == nil && len(r.Parcels) > 0 {
			pc = &r.Parcels[0]
		}
	}

	if pc == nil {
		return models.CanonicalUpdate{}, errors.Wrap(ErrParcelNotFound, sh.TrackingCode)
	}

	upd := toUpdate(*pc, nil)
	if upd.TrackingCode == "" {
		upd.TrackingCode = sh.TrackingCode
	}
	return upd, nil
}

// get returns found=false on 404.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) (bool, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, errors.Wrap(err, "new request")
	}
	req.SetBasicAuth(c.publicKey, c.secretKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode/100 != 2 {
		return false, fmt.Errorf("sendcloud GET %s: http %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errors.Wrap(err, "decode")
	}
	return true, nil
}

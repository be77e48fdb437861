package ship24

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/VaultTrack/internal/models"
)

func TestClient_GetTracking_ByTrackerID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/trackers/tr-9/results", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"trackings":[{"tracker":{"trackerId":"tr-9","trackingNumber":"CODE"},"shipment":{"statusMilestone":"in_transit"},"events":[{"status":"Departed","courierCode":"dhl"}]}]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	res, err := c.GetTracking(context.Background(), &models.Shipment{TrackingCode: "CODE", TrackerID: "tr-9"})
	require.NoError(t, err)
	require.Equal(t, models.MilestoneInTransit, res.Milestone)
	require.Equal(t, "dhl", res.CarrierCode)
	require.Equal(t, "CODE", res.TrackingCode)
}

func TestClient_GetTracking_SearchFallback(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/trackers/search":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "CODE", body["trackingNumber"])
			_, _ = w.Write([]byte(`{"data":{"trackings":[{"tracker":{"trackingNumber":"CODE"},"shipment":{"statusMilestone":"delivered"}}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	res, err := c.GetTracking(context.Background(), &models.Shipment{TrackingCode: "CODE"})
	require.NoError(t, err)
	require.Equal(t, models.MilestoneDelivered, res.Milestone)
	require.Equal(t, []string{"POST /trackers/search"}, paths)
}

func TestClient_GetTracking_RegistersWhenUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/trackers/search":
			_, _ = w.Write([]byte(`{"data":{"trackings":[]}}`))
		case "/trackers":
			require.Equal(t, http.MethodPost, r.Method)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, []any{"gls"}, body["courierCode"])
			_, _ = w.Write([]byte(`{"data":{"tracker":{"trackerId":"new-1","trackingNumber":"CODE","isTracked":true}}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	res, err := c.GetTracking(context.Background(), &models.Shipment{TrackingCode: "CODE", CarrierCode: "gls"})
	require.NoError(t, err)
	require.Equal(t, models.MilestonePending, res.Milestone)
	require.Equal(t, "new-1", res.TrackerID)
	require.Equal(t, "https://t.ship24.com/t/CODE", res.ExternalURL)
}

func TestClient_RegisterTracker_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_api_key"}]}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "bad").RegisterTracker(context.Background(), "CODE", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "http 401")
}

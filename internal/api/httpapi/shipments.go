package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/VaultTrack/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type createShipmentRequest struct {
	TrackingCode string `json:"trackingCode"`
	ProductName  string `json:"productName"`
	Provider     string `json:"provider"`
	CarrierCode  string `json:"carrierCode"`
}

type registerTrackingRequest struct {
	CourierCode string `json:"courierCode"`
}

func ownerOf(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get(ownerHeader))
	if owner == "" {
		return "", badRequest(ownerHeader + " header is required")
	}
	return owner, nil
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest("invalid JSON body"))
		return
	}

	sh, err := s.deps.Shipments.Create(r.Context(), models.ShipmentCreateInput{
		OwnerID:      owner,
		TrackingCode: req.TrackingCode,
		ProductName:  req.ProductName,
		Provider:     req.Provider,
		CarrierCode:  req.CarrierCode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.deps.Shipments.List(r.Context(), owner, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Shipment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipments": list})
}

func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sh, err := s.deps.Shipments.Get(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (s *Server) handleRefreshShipment(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Shipments.Refresh(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"refreshed": true})
}

func (s *Server) handleRegisterTracking(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req registerTrackingRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, badRequest("invalid JSON body"))
			return
		}
	}
	sh, err := s.deps.Shipments.RegisterTracking(r.Context(), owner, chi.URLParam(r, "id"), req.CourierCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, _, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.deps.Notifications.ListNotifications(r.Context(), owner, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func page(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageSize
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, badRequest("limit must be a positive integer")
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, badRequest("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

package pgvault

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/models"
)

const shipmentColumns = `
  id, owner_id, tracking_code, product_name, status,
  provider, carrier_code, tracker_id, provider_status, provider_status_code,
  external_url, last_event, estimated_delivery, origin_country, destination_country,
  history::text,
  last_checked_at, next_check_at, check_fail_count, last_error,
  created_at, updated_at`

func scanShipment(row scanner) (*models.Shipment, error) {
	var sh models.Shipment
	var history string
	if err := row.Scan(
		&sh.ID, &sh.OwnerID, &sh.TrackingCode, &sh.ProductName, &sh.Status,
		&sh.Provider, &sh.CarrierCode, &sh.TrackerID, &sh.ProviderStatus, &sh.ProviderStatusCode,
		&sh.ExternalURL, &sh.LastEvent, &sh.EstimatedDelivery, &sh.OriginCountry, &sh.DestinationCountry,
		&history,
		&sh.LastCheckedAt, &sh.NextCheckAt, &sh.CheckFailCount, &sh.LastError,
		&sh.CreatedAt, &sh.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sh.History = []models.TrackingEvent{}
	if history != "" {
		if err := json.Unmarshal([]byte(history), &sh.History); err != nil {
			return nil, errors.Wrap(err, "decode history")
		}
	}
	return &sh, nil
}

func collectShipments(rows pgx.Rows) ([]*models.Shipment, error) {
	defer rows.Close()
	out := []*models.Shipment{}
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// CreateShipment stores a new shipment with status unknown, due for an
// immediate first check. A second shipment with the same tracking code for
// the same owner is ErrDuplicate.
func (s *Storage) CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	now := time.Now().UTC()
	sh := &models.Shipment{
		ID:           uuid.NewString(),
		OwnerID:      in.OwnerID,
		TrackingCode: in.TrackingCode,
		ProductName:  in.ProductName,
		Status:       models.MilestoneUnknown,
		Provider:     in.Provider,
		CarrierCode:  in.CarrierCode,
		History:      []models.TrackingEvent{},
		NextCheckAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO shipments (
  id, owner_id, tracking_code, product_name, status, provider, carrier_code,
  history, next_check_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,'[]'::jsonb,$8,$8,$8)
`, sh.ID, sh.OwnerID, sh.TrackingCode, sh.ProductName, sh.Status, sh.Provider, sh.CarrierCode, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, errors.Wrap(err, "insert shipment")
	}
	return sh, nil
}

func (s *Storage) GetShipment(ctx context.Context, ownerID, id string) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE owner_id = $1 AND id = $2
`, ownerID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return sh, nil
}

func (s *Storage) ListShipments(ctx context.Context, ownerID string, limit, offset int) ([]*models.Shipment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, ownerID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	return collectShipments(rows)
}

func (s *Storage) FindShipmentsByTrackingCode(ctx context.Context, trackingCode string, limit int) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE tracking_code = $1
ORDER BY created_at ASC
LIMIT $2
`, trackingCode, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments by tracking code")
	}
	return collectShipments(rows)
}

func (s *Storage) FindOwnerShipmentsByTrackingCode(ctx context.Context, ownerID, trackingCode string, limit int) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE owner_id = $1 AND tracking_code = $2
ORDER BY created_at ASC
LIMIT $3
`, ownerID, trackingCode, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select owner shipments by tracking code")
	}
	return collectShipments(rows)
}

// UpdateShipmentTracking overwrites status and history in one statement.
func (s *Storage) UpdateShipmentTracking(ctx context.Context, upd models.ShipmentTrackingUpdate) error {
	history := upd.History
	if history == nil {
		history = []models.TrackingEvent{}
	}
	b, err := json.Marshal(history)
	if err != nil {
		return errors.Wrap(err, "encode history")
	}

	tag, err := s.db.Exec(ctx, `
UPDATE shipments
SET
  status = $2,
  history = $3::jsonb,
  carrier_code = $4,
  tracker_id = $5,
  provider_status = $6,
  provider_status_code = $7,
  external_url = $8,
  last_event = $9,
  estimated_delivery = $10,
  origin_country = $11,
  destination_country = $12,
  updated_at = now()
WHERE id = $1
`, upd.ShipmentID, upd.Status, string(b), upd.CarrierCode, upd.TrackerID,
		upd.ProviderStatus, upd.ProviderStatusCode, upd.ExternalURL, upd.LastEvent,
		upd.EstimatedDelivery, upd.OriginCountry, upd.DestinationCountry)
	if err != nil {
		return errors.Wrap(err, "update shipment tracking")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) SetShipmentTrackerID(ctx context.Context, id, trackerID string) error {
	_, err := s.db.Exec(ctx, `UPDATE shipments SET tracker_id = $2, updated_at = now() WHERE id = $1`, id, trackerID)
	return errors.Wrap(err, "set tracker id")
}

// RecordShipmentCheck stores the poll schedule. A failed check bumps the
// fail counter the planner uses for backoff; a good one resets it.
func (s *Storage) RecordShipmentCheck(ctx context.Context, chk models.ShipmentCheck) error {
	if chk.Error != nil && *chk.Error != "" {
		_, err := s.db.Exec(ctx, `
UPDATE shipments
SET
  last_checked_at = $2,
  check_fail_count = check_fail_count + 1,
  last_error = $3,
  next_check_at = $4,
  updated_at = now()
WHERE id = $1
`, chk.ShipmentID, chk.CheckedAt.UTC(), *chk.Error, chk.NextCheckAt.UTC())
		return errors.Wrap(err, "record check (error)")
	}

	_, err := s.db.Exec(ctx, `
UPDATE shipments
SET
  last_checked_at = $2,
  check_fail_count = 0,
  last_error = NULL,
  next_check_at = $3,
  updated_at = now()
WHERE id = $1
`, chk.ShipmentID, chk.CheckedAt.UTC(), chk.NextCheckAt.UTC())
	return errors.Wrap(err, "record check (ok)")
}

// RefreshShipment makes the shipment due right away.
func (s *Storage) RefreshShipment(ctx context.Context, ownerID, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE shipments SET next_check_at = now(), updated_at = now() WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return errors.Wrap(err, "refresh shipment")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimDueShipments выбирает пачку посылок, готовых к проверке, и "бронирует" их
// на lease, чтобы параллельный воркер не взял их повторно.
// Доставленные и отменённые посылки не опрашиваются.
func (s *Storage) ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE next_check_at <= $1
  AND status <> ALL($2)
ORDER BY next_check_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, now.UTC(), []string{string(models.MilestoneDelivered), string(models.MilestoneCancelled)}, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due shipments")
	}
	picked, err := collectShipments(rows)
	if err != nil {
		return nil, err
	}

	leaseUntil := now.UTC().Add(lease)
	for _, sh := range picked {
		if _, err := tx.Exec(ctx, `UPDATE shipments SET next_check_at = $2, updated_at = now() WHERE id = $1`, sh.ID, leaseUntil); err != nil {
			return nil, errors.Wrap(err, "lease shipment")
		}
		sh.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

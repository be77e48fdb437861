package pgvault

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/models"
)

func (s *Storage) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO notifications (
  id, owner_id, type, title, message, shipment_id, tracking_code,
  old_status, new_status, provider_status, read, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`, n.ID, n.OwnerID, n.Type, n.Title, n.Message, n.ShipmentID, n.TrackingCode,
		n.OldStatus, n.NewStatus, n.ProviderStatus, n.Read, n.CreatedAt)
	if err != nil {
		return models.Notification{}, errors.Wrap(err, "insert notification")
	}
	return n, nil
}

func (s *Storage) ListNotifications(ctx context.Context, ownerID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
SELECT id, owner_id, type, title, message, shipment_id, tracking_code,
       old_status, new_status, provider_status, read, created_at
FROM notifications
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2
`, ownerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select notifications")
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID, &n.OwnerID, &n.Type, &n.Title, &n.Message, &n.ShipmentID, &n.TrackingCode,
			&n.OldStatus, &n.NewStatus, &n.ProviderStatus, &n.Read, &n.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		out = append(out, n)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

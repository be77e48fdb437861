package pgvault

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS shipments (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  tracking_code TEXT NOT NULL,
  product_name TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  provider TEXT NOT NULL DEFAULT '',
  carrier_code TEXT NOT NULL DEFAULT '',
  tracker_id TEXT NOT NULL DEFAULT '',
  provider_status TEXT NOT NULL DEFAULT '',
  provider_status_code TEXT NOT NULL DEFAULT '',
  external_url TEXT NOT NULL DEFAULT '',
  last_event TEXT NOT NULL DEFAULT '',
  estimated_delivery TEXT NOT NULL DEFAULT '',
  origin_country TEXT NOT NULL DEFAULT '',
  destination_country TEXT NOT NULL DEFAULT '',
  history JSONB NOT NULL DEFAULT '[]'::jsonb,
  last_checked_at TIMESTAMPTZ NULL,
  next_check_at TIMESTAMPTZ NOT NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (owner_id, tracking_code)
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_tracking_code ON shipments(tracking_code)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_next_check_at ON shipments(next_check_at)`,
		`
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  shipment_id TEXT NOT NULL,
  tracking_code TEXT NOT NULL,
  old_status TEXT NOT NULL,
  new_status TEXT NOT NULL,
  provider_status TEXT NOT NULL DEFAULT '',
  read BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_owner_created ON notifications(owner_id, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS catalog_entries (
  blueprint_id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  game_id INT NOT NULL DEFAULT 0,
  expansion_id INT NOT NULL DEFAULT 0,
  expansion_code TEXT NOT NULL DEFAULT '',
  expansion_name TEXT NOT NULL DEFAULT '',
  collector_number TEXT NOT NULL DEFAULT '',
  rarity TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT '',
  fingerprint BYTEA NULL,
  price_amount NUMERIC(12,2) NULL,
  price_currency TEXT NULL,
  listing_count INT NULL,
  price_updated_at TIMESTAMPTZ NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_entries_expansion ON catalog_entries(expansion_id)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_entries_missing_fp ON catalog_entries(blueprint_id) WHERE fingerprint IS NULL`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}

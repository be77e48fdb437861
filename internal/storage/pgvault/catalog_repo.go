package pgvault

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/fingerprint"
	"github.com/BearBump/VaultTrack/internal/models"
)

// UpsertCatalogEntries writes one chunk in one transaction. A changed image
// clears the stored fingerprint so the backfill picks the entry up again.
func (s *Storage) UpsertCatalogEntries(ctx context.Context, entries []models.CatalogEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	if len(entries) > MaxBatch {
		return 0, errors.Wrapf(ErrBatchTooLarge, "%d entries", len(entries))
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	for _, e := range entries {
		_, err := tx.Exec(ctx, `
INSERT INTO catalog_entries (
  blueprint_id, name, kind, game_id, expansion_id, expansion_code, expansion_name,
  collector_number, rarity, image_url, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (blueprint_id) DO UPDATE SET
  name = EXCLUDED.name,
  kind = EXCLUDED.kind,
  game_id = EXCLUDED.game_id,
  expansion_id = EXCLUDED.expansion_id,
  expansion_code = EXCLUDED.expansion_code,
  expansion_name = EXCLUDED.expansion_name,
  collector_number = EXCLUDED.collector_number,
  rarity = EXCLUDED.rarity,
  fingerprint = CASE WHEN catalog_entries.image_url = EXCLUDED.image_url
                     THEN catalog_entries.fingerprint ELSE NULL END,
  image_url = EXCLUDED.image_url,
  updated_at = EXCLUDED.updated_at
`, e.BlueprintID, e.Name, e.Kind, e.GameID, e.ExpansionID, e.ExpansionCode, e.ExpansionName,
			e.CollectorNumber, e.Rarity, e.ImageURL, now)
		if err != nil {
			return 0, errors.Wrap(err, "upsert catalog entry")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}
	return len(entries), nil
}

// UpdatePrices touches price columns of entries that already exist. Unknown
// blueprints are ignored; the count covers rows actually updated.
func (s *Storage) UpdatePrices(ctx context.Context, prices []models.PriceUpdate) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	if len(prices) > MaxBatch {
		return 0, errors.Wrapf(ErrBatchTooLarge, "%d prices", len(prices))
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updated := 0
	for _, p := range prices {
		tag, err := tx.Exec(ctx, `
UPDATE catalog_entries
SET
  price_amount = $2::numeric,
  price_currency = $3,
  listing_count = $4,
  price_updated_at = $5
WHERE blueprint_id = $1
`, p.BlueprintID, p.Price.Amount.String(), p.Price.Currency, p.Price.ListingCount, p.Price.UpdatedAt.UTC())
		if err != nil {
			return 0, errors.Wrap(err, "update price")
		}
		updated += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}
	return updated, nil
}

// ListCatalogFingerprints returns every stored fingerprint keyed by blueprint
// id. Entries without one are left out.
func (s *Storage) ListCatalogFingerprints(ctx context.Context) (map[string]fingerprint.Fingerprint, error) {
	rows, err := s.db.Query(ctx, `SELECT blueprint_id, fingerprint FROM catalog_entries WHERE fingerprint IS NOT NULL`)
	if err != nil {
		return nil, errors.Wrap(err, "select fingerprints")
	}
	defer rows.Close()

	out := map[string]fingerprint.Fingerprint{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.Wrap(err, "scan fingerprint")
		}
		fp, err := fingerprint.FromBytes(raw)
		if err != nil {
			slog.Warn("skip malformed fingerprint", "blueprint_id", id, "len", len(raw))
			continue
		}
		out[id] = fp
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListEntriesWithoutFingerprint returns entries that have an image but no hash yet.
func (s *Storage) ListEntriesWithoutFingerprint(ctx context.Context, limit int) ([]models.CatalogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
SELECT blueprint_id, name, image_url
FROM catalog_entries
WHERE fingerprint IS NULL AND image_url <> ''
ORDER BY blueprint_id
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select entries without fingerprint")
	}
	defer rows.Close()

	out := []models.CatalogEntry{}
	for rows.Next() {
		var e models.CatalogEntry
		if err := rows.Scan(&e.BlueprintID, &e.Name, &e.ImageURL); err != nil {
			return nil, errors.Wrap(err, "scan catalog entry")
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) SetFingerprint(ctx context.Context, blueprintID string, fp fingerprint.Fingerprint) error {
	tag, err := s.db.Exec(ctx, `UPDATE catalog_entries SET fingerprint = $2, updated_at = now() WHERE blueprint_id = $1`, blueprintID, fp.Bytes())
	if err != nil {
		return errors.Wrap(err, "set fingerprint")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) GetCatalogEntry(ctx context.Context, blueprintID string) (*models.CatalogEntry, error) {
	var e models.CatalogEntry
	var raw []byte
	var amount, currency *string
	var listings *int32
	var priceAt *time.Time
	err := s.db.QueryRow(ctx, `
SELECT blueprint_id, name, kind, game_id, expansion_id, expansion_code, expansion_name,
       collector_number, rarity, image_url, fingerprint,
       price_amount::text, price_currency, listing_count, price_updated_at, updated_at
FROM catalog_entries
WHERE blueprint_id = $1
`, blueprintID).Scan(
		&e.BlueprintID, &e.Name, &e.Kind, &e.GameID, &e.ExpansionID, &e.ExpansionCode, &e.ExpansionName,
		&e.CollectorNumber, &e.Rarity, &e.ImageURL, &raw,
		&amount, &currency, &listings, &priceAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select catalog entry")
	}

	if len(raw) > 0 {
		fp, err := fingerprint.FromBytes(raw)
		if err != nil {
			return nil, err
		}
		e.Fingerprint = &fp
	}
	if amount != nil {
		p, err := parsePrice(*amount, currency, listings, priceAt)
		if err != nil {
			return nil, err
		}
		e.Price = p
	}
	return &e, nil
}

package pgvault

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/BearBump/VaultTrack/internal/models"
)

func parsePrice(amount string, currency *string, listings *int32, at *time.Time) (*models.MarketPrice, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.Wrap(err, "parse price")
	}
	p := &models.MarketPrice{Amount: d}
	if currency != nil {
		p.Currency = *currency
	}
	if listings != nil {
		p.ListingCount = int(*listings)
	}
	if at != nil {
		p.UpdatedAt = *at
	}
	return p, nil
}

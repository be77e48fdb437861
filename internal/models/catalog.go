package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/BearBump/VaultTrack/internal/fingerprint"
)

// Catalog entry kinds as reported by the upstream catalog.
const (
	KindSingle  = "single"
	KindBooster = "booster"
	KindBundle  = "bundle"
	KindOther   = "other"
)

type CatalogEntry struct {
	BlueprintID     string
	Name            string
	Kind            string
	GameID          int
	ExpansionID     int
	ExpansionCode   string
	ExpansionName   string
	CollectorNumber string
	Rarity          string
	ImageURL        string

	// nil means not computed yet.
	Fingerprint *fingerprint.Fingerprint
	Price       *MarketPrice

	UpdatedAt time.Time
}

type MarketPrice struct {
	Amount       decimal.Decimal
	Currency     string
	ListingCount int
	UpdatedAt    time.Time
}

type PriceUpdate struct {
	BlueprintID string
	Price       MarketPrice
}

type Expansion struct {
	ID     int
	GameID int
	Code   string
	Name   string
}

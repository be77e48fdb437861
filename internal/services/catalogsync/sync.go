package catalogsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/fingerprint"
	"github.com/BearBump/VaultTrack/internal/metrics"
	"github.com/BearBump/VaultTrack/internal/models"
)

const (
	DefaultCallDelay    = 250 * time.Millisecond
	DefaultPricingDelay = 1500 * time.Millisecond
	// DefaultChunkSize stays under the store's 500-row batch limit.
	DefaultChunkSize = 400

	JobCatalog      = "catalog"
	JobPrices       = "prices"
	JobFingerprints = "fingerprints"
)

type Upstream interface {
	Expansions(ctx context.Context) ([]models.Expansion, error)
	Blueprints(ctx context.Context, exp models.Expansion) ([]models.CatalogEntry, error)
	CheapestPrices(ctx context.Context, expansionID int) ([]models.PriceUpdate, error)
	Image(ctx context.Context, imageURL string) ([]byte, error)
}

type Store interface {
	UpsertCatalogEntries(ctx context.Context, entries []models.CatalogEntry) (int, error)
	UpdatePrices(ctx context.Context, prices []models.PriceUpdate) (int, error)
	ListEntriesWithoutFingerprint(ctx context.Context, limit int) ([]models.CatalogEntry, error)
	SetFingerprint(ctx context.Context, blueprintID string, fp fingerprint.Fingerprint) error
}

// Invalidator drops the cached fingerprint map used for matching.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Settings struct {
	CallDelay    time.Duration
	PricingDelay time.Duration
	ChunkSize    int
}

func DefaultSettings() Settings {
	return Settings{
		CallDelay:    DefaultCallDelay,
		PricingDelay: DefaultPricingDelay,
		ChunkSize:    DefaultChunkSize,
	}
}

type CatalogResult struct {
	TotalUpserted       int `json:"totalUpserted"`
	ExpansionsProcessed int `json:"expansionsProcessed"`
	ExpansionsFailed    int `json:"expansionsFailed"`
}

type PriceResult struct {
	TotalUpdated        int `json:"totalUpdated"`
	ExpansionsProcessed int `json:"expansionsProcessed"`
	ExpansionsFailed    int `json:"expansionsFailed"`
}

type BackfillResult struct {
	Hashed int `json:"hashed"`
	Failed int `json:"failed"`
}

type Syncer struct {
	up      Upstream
	store   Store
	inv     Invalidator
	metrics *metrics.Metrics
	set     Settings

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func New(up Upstream, store Store, inv Invalidator) *Syncer {
	return &Syncer{
		up:    up,
		store: store,
		inv:   inv,
		set:   DefaultSettings(),
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// WithSettings replaces non-zero fields; a chunk size above the store limit
// is clamped to the default.
func (s *Syncer) WithSettings(set Settings) *Syncer {
	if set.CallDelay > 0 {
		s.set.CallDelay = set.CallDelay
	}
	if set.PricingDelay > 0 {
		s.set.PricingDelay = set.PricingDelay
	}
	if set.ChunkSize > 0 {
		s.set.ChunkSize = set.ChunkSize
	}
	if s.set.ChunkSize >= 500 {
		s.set.ChunkSize = DefaultChunkSize
	}
	return s
}

func (s *Syncer) WithMetrics(m *metrics.Metrics) *Syncer {
	s.metrics = m
	return s
}

func (s *Syncer) Settings() Settings { return s.set }

// SyncCatalog pulls every expansion's blueprints and upserts them. A failing
// expansion is logged and skipped; cancellation stops between calls and
// keeps the chunks already written.
func (s *Syncer) SyncCatalog(ctx context.Context) (CatalogResult, error) {
	start := s.now()
	defer func() { s.metrics.SyncDuration(JobCatalog, s.now().Sub(start).Seconds()) }()

	res, err := s.syncCatalog(ctx)
	if res.TotalUpserted > 0 {
		s.invalidate(ctx)
	}
	if err != nil {
		return res, err
	}
	slog.Info("catalog sync done", "upserted", res.TotalUpserted, "expansions", res.ExpansionsProcessed, "failed", res.ExpansionsFailed)
	return res, nil
}

func (s *Syncer) syncCatalog(ctx context.Context) (CatalogResult, error) {
	var res CatalogResult
	exps, err := s.up.Expansions(ctx)
	if err != nil {
		s.metrics.SyncFailure(JobCatalog)
		return res, errors.Wrap(err, "list expansions")
	}

	for _, exp := range exps {
		if err := s.sleep(ctx, s.set.CallDelay); err != nil {
			return res, err
		}

		entries, err := s.up.Blueprints(ctx, exp)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.ExpansionsFailed++
			s.metrics.SyncFailure(JobCatalog)
			slog.Error("fetch blueprints", "expansion_id", exp.ID, "expansion", exp.Code, "error", err.Error())
			continue
		}

		n, err := s.upsertChunks(ctx, entries)
		res.TotalUpserted += n
		s.metrics.SyncItems(JobCatalog, n)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.ExpansionsFailed++
			s.metrics.SyncFailure(JobCatalog)
			slog.Error("upsert catalog entries", "expansion_id", exp.ID, "written", n, "error", err.Error())
			continue
		}
		res.ExpansionsProcessed++
		slog.Info("expansion synced", "expansion_id", exp.ID, "expansion", exp.Code, "entries", n)
	}
	return res, nil
}

// SyncPrices refreshes the cheapest listing of entries that already exist.
func (s *Syncer) SyncPrices(ctx context.Context) (PriceResult, error) {
	start := s.now()
	defer func() { s.metrics.SyncDuration(JobPrices, s.now().Sub(start).Seconds()) }()

	var res PriceResult
	exps, err := s.up.Expansions(ctx)
	if err != nil {
		s.metrics.SyncFailure(JobPrices)
		return res, errors.Wrap(err, "list expansions")
	}

	for i, exp := range exps {
		if i > 0 {
			if err := s.sleep(ctx, s.set.PricingDelay); err != nil {
				return res, err
			}
		}

		prices, err := s.up.CheapestPrices(ctx, exp.ID)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.ExpansionsFailed++
			s.metrics.SyncFailure(JobPrices)
			slog.Error("fetch marketplace prices", "expansion_id", exp.ID, "error", err.Error())
			continue
		}

		n, err := s.priceChunks(ctx, prices)
		res.TotalUpdated += n
		s.metrics.SyncItems(JobPrices, n)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.ExpansionsFailed++
			s.metrics.SyncFailure(JobPrices)
			slog.Error("update prices", "expansion_id", exp.ID, "written", n, "error", err.Error())
			continue
		}
		res.ExpansionsProcessed++
	}

	slog.Info("price sync done", "updated", res.TotalUpdated, "expansions", res.ExpansionsProcessed, "failed", res.ExpansionsFailed)
	return res, nil
}

// BackfillFingerprints hashes the images of up to limit entries that have no
// fingerprint yet.
func (s *Syncer) BackfillFingerprints(ctx context.Context, limit int) (BackfillResult, error) {
	start := s.now()
	defer func() { s.metrics.SyncDuration(JobFingerprints, s.now().Sub(start).Seconds()) }()

	var res BackfillResult
	entries, err := s.store.ListEntriesWithoutFingerprint(ctx, limit)
	if err != nil {
		s.metrics.SyncFailure(JobFingerprints)
		return res, errors.Wrap(err, "list entries without fingerprint")
	}

	for i, e := range entries {
		if i > 0 {
			if err := s.sleep(ctx, s.set.CallDelay); err != nil {
				s.finishBackfill(ctx, res)
				return res, err
			}
		}
		if err := s.hashEntry(ctx, e); err != nil {
			if ctx.Err() != nil {
				s.finishBackfill(ctx, res)
				return res, ctx.Err()
			}
			res.Failed++
			s.metrics.SyncFailure(JobFingerprints)
			slog.Warn("fingerprint entry", "blueprint_id", e.BlueprintID, "error", err.Error())
			continue
		}
		res.Hashed++
	}

	s.finishBackfill(ctx, res)
	return res, nil
}

func (s *Syncer) hashEntry(ctx context.Context, e models.CatalogEntry) error {
	if e.ImageURL == "" {
		return errors.New("entry has no image")
	}
	img, err := s.up.Image(ctx, e.ImageURL)
	if err != nil {
		return err
	}
	fp, err := fingerprint.HashBytes(img)
	if err != nil {
		return err
	}
	return s.store.SetFingerprint(ctx, e.BlueprintID, fp)
}

func (s *Syncer) finishBackfill(ctx context.Context, res BackfillResult) {
	s.metrics.SyncItems(JobFingerprints, res.Hashed)
	if res.Hashed > 0 {
		s.invalidate(ctx)
	}
	slog.Info("fingerprint backfill done", "hashed", res.Hashed, "failed", res.Failed)
}

func (s *Syncer) upsertChunks(ctx context.Context, entries []models.CatalogEntry) (int, error) {
	total := 0
	for start := 0; start < len(entries); start += s.set.ChunkSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := min(start+s.set.ChunkSize, len(entries))
		n, err := s.store.UpsertCatalogEntries(ctx, entries[start:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *Syncer) priceChunks(ctx context.Context, prices []models.PriceUpdate) (int, error) {
	total := 0
	for start := 0; start < len(prices); start += s.set.ChunkSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := min(start+s.set.ChunkSize, len(prices))
		n, err := s.store.UpdatePrices(ctx, prices[start:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// invalidate uses a fresh context so a cancelled run still drops the cache.
func (s *Syncer) invalidate(ctx context.Context) {
	if s.inv == nil {
		return
	}
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.inv.Invalidate(ictx); err != nil {
		slog.Warn("invalidate fingerprint cache", "error", err.Error())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package matching

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/VaultTrack/internal/cache"
	"github.com/BearBump/VaultTrack/internal/fingerprint"
	"github.com/BearBump/VaultTrack/internal/metrics"
)

const (
	// DefaultThreshold is the largest accepted distance out of 192 bits.
	DefaultThreshold = 40

	CatalogCacheKey = "catalog:fingerprints"
)

type CatalogSource interface {
	ListCatalogFingerprints(ctx context.Context) (map[string]fingerprint.Fingerprint, error)
}

type Service struct {
	src      CatalogSource
	cache    cache.BytesCache
	cacheTTL time.Duration
	metrics  *metrics.Metrics

	threshold int
	limit     int
}

func New(src CatalogSource, c cache.BytesCache, cacheTTL time.Duration) *Service {
	return &Service{
		src:       src,
		cache:     c,
		cacheTTL:  cacheTTL,
		threshold: DefaultThreshold,
		limit:     fingerprint.DefaultRankLimit,
	}
}

func (s *Service) WithThreshold(n int) *Service {
	if n > 0 {
		s.threshold = n
	}
	return s
}

func (s *Service) WithLimit(n int) *Service {
	if n > 0 {
		s.limit = n
	}
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) Threshold() int { return s.threshold }

// Identification is the answer to "which catalog card is this photo".
type Identification struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Threshold   int                     `json:"threshold"`
	CatalogSize int                     `json:"catalogSize"`
	fingerprint.MatchResult
}

// Identify hashes the image and matches it against the catalog.
func (s *Service) Identify(ctx context.Context, image []byte) (Identification, error) {
	fp, err := fingerprint.HashBytes(image)
	if err != nil {
		s.metrics.CardMatch("unreadable")
		return Identification{}, err
	}
	return s.MatchFingerprint(ctx, fp)
}

func (s *Service) MatchFingerprint(ctx context.Context, fp fingerprint.Fingerprint) (Identification, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		s.metrics.CardMatch("error")
		return Identification{}, err
	}

	res := fingerprint.Match(fp, catalog, s.threshold, s.limit)
	switch {
	case !res.Found:
		s.metrics.CardMatch("no_match")
	case res.Ambiguous:
		s.metrics.CardMatch("ambiguous")
	default:
		s.metrics.CardMatch("match")
	}
	return Identification{Fingerprint: fp, Threshold: s.threshold, CatalogSize: len(catalog), MatchResult: res}, nil
}

// Catalog returns the fingerprint map, from cache when possible. The cache is
// best-effort: read or write failures fall back to the store.
func (s *Service) Catalog(ctx context.Context) (map[string]fingerprint.Fingerprint, error) {
	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, CatalogCacheKey)
		if err != nil {
			slog.Warn("catalog cache get", "error", err.Error())
		}
		if err == nil && ok {
			var m map[string]fingerprint.Fingerprint
			if json.Unmarshal(b, &m) == nil {
				return m, nil
			}
		}
	}

	m, err := s.src.ListCatalogFingerprints(ctx)
	if err != nil {
		return nil, err
	}
	if s.cacheEnabled() {
		s.storeCatalog(ctx, m)
	}
	return m, nil
}

func (s *Service) storeCatalog(ctx context.Context, m map[string]fingerprint.Fingerprint) {
	b, err := json.Marshal(m)
	if err != nil {
		slog.Warn("catalog cache encode", "error", err.Error())
		return
	}
	if err := s.cache.Set(ctx, CatalogCacheKey, b, s.cacheTTL); err != nil {
		slog.Warn("catalog cache set", "error", err.Error())
	}
}

// Invalidate drops the cached map so the next match reloads it.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, CatalogCacheKey)
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

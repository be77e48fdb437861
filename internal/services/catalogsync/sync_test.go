package catalogsync

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BearBump/VaultTrack/internal/fingerprint"
	"github.com/BearBump/VaultTrack/internal/metrics"
	"github.com/BearBump/VaultTrack/internal/models"
	syncmocks "github.com/BearBump/VaultTrack/internal/services/catalogsync/mocks"
)

type fakeUpstream struct {
	expansions []models.Expansion
	expErr     error
	blueprints map[int][]models.CatalogEntry
	prices     map[int][]models.PriceUpdate
	failing    map[int]bool
	images     map[string][]byte
	calls      []string
}

func (f *fakeUpstream) Expansions(ctx context.Context) ([]models.Expansion, error) {
	return f.expansions, f.expErr
}

func (f *fakeUpstream) Blueprints(ctx context.Context, exp models.Expansion) ([]models.CatalogEntry, error) {
	f.calls = append(f.calls, "blueprints:"+exp.Code)
	if f.failing[exp.ID] {
		return nil, errors.New("upstream 502")
	}
	return f.blueprints[exp.ID], nil
}

func (f *fakeUpstream) CheapestPrices(ctx context.Context, id int) ([]models.PriceUpdate, error) {
	if f.failing[id] {
		return nil, errors.New("upstream 429")
	}
	return f.prices[id], nil
}

func (f *fakeUpstream) Image(ctx context.Context, url string) ([]byte, error) {
	b, ok := f.images[url]
	if !ok {
		return nil, errors.New("404")
	}
	return b, nil
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.n++
	return nil
}

func entries(prefix string, n int) []models.CatalogEntry {
	out := make([]models.CatalogEntry, n)
	for i := range out {
		out[i] = models.CatalogEntry{BlueprintID: prefix + string(rune('a'+i%26)), Name: prefix}
	}
	return out
}

func threeExpansions() []models.Expansion {
	return []models.Expansion{{ID: 1, Code: "e1"}, {ID: 2, Code: "e2"}, {ID: 3, Code: "e3"}}
}

type SyncSuite struct {
	suite.Suite

	store  *syncmocks.Store
	up     *fakeUpstream
	inv    *countingInvalidator
	sleeps []time.Duration
	s      *Syncer
}

func (s *SyncSuite) SetupTest() {
	s.store = syncmocks.NewStore(s.T())
	s.up = &fakeUpstream{
		expansions: threeExpansions(),
		blueprints: map[int][]models.CatalogEntry{1: entries("a", 3), 2: entries("b", 2), 3: entries("c", 4)},
		prices:     map[int][]models.PriceUpdate{},
		failing:    map[int]bool{},
		images:     map[string][]byte{},
	}
	s.inv = &countingInvalidator{}
	s.sleeps = nil
	s.s = New(s.up, s.store, s.inv)
	s.s.sleep = func(ctx context.Context, d time.Duration) error {
		s.sleeps = append(s.sleeps, d)
		return ctx.Err()
	}
}

func (s *SyncSuite) TestSyncCatalog_FailedExpansionIsSkipped() {
	s.up.failing[2] = true
	s.store.On("UpsertCatalogEntries", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, e []models.CatalogEntry) int { return len(e) }, nil).Twice()

	res, err := s.s.SyncCatalog(context.Background())
	s.Require().NoError(err)
	s.Equal(CatalogResult{TotalUpserted: 7, ExpansionsProcessed: 2, ExpansionsFailed: 1}, res)
	s.Equal([]string{"blueprints:e1", "blueprints:e2", "blueprints:e3"}, s.up.calls)
	s.Equal([]time.Duration{DefaultCallDelay, DefaultCallDelay, DefaultCallDelay}, s.sleeps)
	s.Equal(1, s.inv.n)
}

func (s *SyncSuite) TestSyncCatalog_ChunksWrites() {
	s.up.expansions = s.up.expansions[:1]
	s.up.blueprints[1] = entries("a", 9)
	s.s.WithSettings(Settings{ChunkSize: 4})

	var sizes []int
	s.store.On("UpsertCatalogEntries", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, e []models.CatalogEntry) int {
			sizes = append(sizes, len(e))
			return len(e)
		}, nil).Times(3)

	res, err := s.s.SyncCatalog(context.Background())
	s.Require().NoError(err)
	s.Equal([]int{4, 4, 1}, sizes)
	s.Equal(9, res.TotalUpserted)
}

func (s *SyncSuite) TestSyncCatalog_WriteFailureKeepsEarlierChunks() {
	s.up.expansions = s.up.expansions[:1]
	s.up.blueprints[1] = entries("a", 5)
	s.s.WithSettings(Settings{ChunkSize: 3})

	s.store.On("UpsertCatalogEntries", mock.Anything, mock.Anything).Return(3, nil).Once()
	s.store.On("UpsertCatalogEntries", mock.Anything, mock.Anything).Return(0, errors.New("deadlock")).Once()

	res, err := s.s.SyncCatalog(context.Background())
	s.Require().NoError(err)
	s.Equal(CatalogResult{TotalUpserted: 3, ExpansionsFailed: 1}, res)
	s.Equal(1, s.inv.n)
}

func (s *SyncSuite) TestSyncCatalog_ListExpansionsError() {
	s.up.expErr = errors.New("auth")
	_, err := s.s.SyncCatalog(context.Background())
	s.Require().Error(err)
	s.Equal(0, s.inv.n)
}

func (s *SyncSuite) TestSyncCatalog_CancelledStopsBetweenCalls() {
	ctx, cancel := context.WithCancel(context.Background())
	s.store.On("UpsertCatalogEntries", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, e []models.CatalogEntry) int {
			cancel()
			return len(e)
		}, nil).Once()

	res, err := s.s.SyncCatalog(ctx)
	s.Require().ErrorIs(err, context.Canceled)
	s.Equal(3, res.TotalUpserted)
	s.Equal(1, res.ExpansionsProcessed)
	s.Equal(1, s.inv.n)
}

func (s *SyncSuite) TestSyncPrices_PacedAndIsolated() {
	s.up.failing[2] = true
	s.up.prices[1] = []models.PriceUpdate{{BlueprintID: "a"}, {BlueprintID: "b"}}
	s.up.prices[3] = []models.PriceUpdate{{BlueprintID: "c"}}
	s.store.On("UpdatePrices", mock.Anything, mock.Anything).Return(2, nil).Once()
	s.store.On("UpdatePrices", mock.Anything, mock.Anything).Return(0, nil).Once()

	res, err := s.s.SyncPrices(context.Background())
	s.Require().NoError(err)
	s.Equal(PriceResult{TotalUpdated: 2, ExpansionsProcessed: 2, ExpansionsFailed: 1}, res)
	s.Equal([]time.Duration{DefaultPricingDelay, DefaultPricingDelay}, s.sleeps)
	s.Equal(0, s.inv.n)
}

func (s *SyncSuite) TestBackfillFingerprints() {
	img := pngBytes()
	want, err := fingerprint.HashBytes(img)
	s.Require().NoError(err)
	s.up.images["https://img/1.png"] = img
	s.up.images["https://img/bad.png"] = []byte("garbage")

	s.store.On("ListEntriesWithoutFingerprint", mock.Anything, 10).Return([]models.CatalogEntry{
		{BlueprintID: "1", ImageURL: "https://img/1.png"},
		{BlueprintID: "2", ImageURL: "https://img/bad.png"},
		{BlueprintID: "3"},
		{BlueprintID: "4", ImageURL: "https://img/missing.png"},
	}, nil).Once()
	s.store.On("SetFingerprint", mock.Anything, "1", want).Return(nil).Once()

	res, err := s.s.BackfillFingerprints(context.Background(), 10)
	s.Require().NoError(err)
	s.Equal(BackfillResult{Hashed: 1, Failed: 3}, res)
	s.Len(s.sleeps, 3)
	s.Equal(1, s.inv.n)
}

func (s *SyncSuite) TestBackfillFingerprints_NothingToDo() {
	s.store.On("ListEntriesWithoutFingerprint", mock.Anything, 5).Return(nil, nil).Once()
	res, err := s.s.BackfillFingerprints(context.Background(), 5)
	s.Require().NoError(err)
	s.Equal(BackfillResult{}, res)
	s.Equal(0, s.inv.n)
}

func TestSyncSuite(t *testing.T) {
	suite.Run(t, new(SyncSuite))
}

func TestSyncCatalog_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := syncmocks.NewStore(t)
	up := &fakeUpstream{
		expansions: threeExpansions(),
		blueprints: map[int][]models.CatalogEntry{1: entries("a", 2), 3: entries("c", 1)},
		failing:    map[int]bool{2: true},
	}
	store.On("UpsertCatalogEntries", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, e []models.CatalogEntry) int { return len(e) }, nil).Twice()

	s := New(up, store, nil).WithMetrics(metrics.New(reg))
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_, err := s.SyncCatalog(context.Background())
	require.NoError(t, err)

	expected := `
# HELP vaulttrack_catalog_sync_items_total Catalog entries written by sync jobs.
# TYPE vaulttrack_catalog_sync_items_total counter
vaulttrack_catalog_sync_items_total{job="catalog"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "vaulttrack_catalog_sync_items_total"))
}

func TestWithSettings_ClampsChunkSize(t *testing.T) {
	s := New(nil, nil, nil).WithSettings(Settings{ChunkSize: 800, CallDelay: time.Second})
	require.Equal(t, DefaultChunkSize, s.Settings().ChunkSize)
	require.Equal(t, time.Second, s.Settings().CallDelay)
	require.Equal(t, DefaultPricingDelay, s.Settings().PricingDelay)
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))
}

func pngBytes() []byte {
	img := image.NewGray(image.Rect(0, 0, 64, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*5 + y*11) % 256)})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/VaultTrack/internal/integrations/carrier"
	"github.com/BearBump/VaultTrack/internal/integrations/carrier/fake"
	"github.com/BearBump/VaultTrack/internal/models"
)

type fakeRepo struct {
	mu    sync.Mutex
	calls int
	items []*models.Shipment
	err   error
}

func (r *fakeRepo) ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	items := r.items
	r.items = nil
	return items, r.err
}

func (r *fakeRepo) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type noopProducer struct{}

func (p noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error { return nil }

func TestPoller_Run_StopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	p := New(repo, carrier.Registry{}, noopProducer{}, nil, "t").WithSettings(5*time.Millisecond, 1, 1, 1*time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, repo.Calls(), 1)
}

func TestPoller_runOnce_ProcessesBatch(t *testing.T) {
	repo := &fakeRepo{items: []*models.Shipment{
		{ID: "a", TrackingCode: "A1", Provider: models.ProviderFake},
		{ID: "b", TrackingCode: "B2", Provider: models.ProviderFake},
		{ID: "c", TrackingCode: "C3", Provider: models.ProviderFake},
	}}
	fp := &fakeProducer{}
	p := New(repo, carrier.Registry{models.ProviderFake: fake.New()}, fp, nil, "t").WithSettings(0, 10, 2, 0, 0)

	p.runOnce(context.Background())

	st := p.Stats()
	require.Equal(t, int64(3), st.TotalClaimed)
	require.Equal(t, int64(3), st.TotalProcessed)
	require.Zero(t, st.TotalErrors)
	require.Zero(t, st.InFlight)
	require.NotNil(t, st.LastCycleAt)
	require.Equal(t, 3, fp.calls)
}

func TestPoller_runOnce_ClaimErrorRecorded(t *testing.T) {
	repo := &fakeRepo{err: errors.New("pg down")}
	p := New(repo, carrier.Registry{}, noopProducer{}, nil, "t")

	p.runOnce(context.Background())
	require.Equal(t, "pg down", p.Stats().LastError)
}

func TestPoller_Trigger(t *testing.T) {
	repo := &fakeRepo{}
	p := New(repo, carrier.Registry{}, noopProducer{}, nil, "t").WithSettings(time.Hour, 1, 1, time.Second, 1)

	p.Trigger()
	p.Trigger() // второй вызов не блокирует
	require.NotNil(t, p.Stats().LastTriggerAt)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.Calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/VaultTrack/internal/services/catalogsync"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: "default"}, nil
}

func TestEnqueue(t *testing.T) {
	q := &fakeEnqueuer{}

	info, err := Enqueue(context.Background(), q, JobCatalog)
	require.NoError(t, err)
	require.Equal(t, TypeCatalogSync, info.Type)

	_, err = Enqueue(context.Background(), q, JobFingerprints)
	require.NoError(t, err)
	var pl BackfillPayload
	require.NoError(t, json.Unmarshal(q.tasks[1].Payload(), &pl))
	require.Equal(t, DefaultBackfillLimit, pl.Limit)

	_, err = Enqueue(context.Background(), q, "everything")
	require.ErrorIs(t, err, ErrUnknownJob)
	require.Len(t, q.tasks, 2)

	q.err = errors.New("redis down")
	_, err = Enqueue(context.Background(), q, JobPrices)
	require.ErrorContains(t, err, "enqueue catalog:prices")
}

func TestNewBackfillTask(t *testing.T) {
	task, err := NewBackfillTask(25)
	require.NoError(t, err)
	require.Equal(t, TypeFingerprintBackfill, task.Type())
	var pl BackfillPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &pl))
	require.Equal(t, 25, pl.Limit)

	task, err = NewBackfillTask(0)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(task.Payload(), &pl))
	require.Equal(t, DefaultBackfillLimit, pl.Limit)
}

type fakeSyncer struct {
	limit   int
	catalog int
	prices  int
	err     error
}

func (f *fakeSyncer) SyncCatalog(ctx context.Context) (catalogsync.CatalogResult, error) {
	f.catalog++
	return catalogsync.CatalogResult{TotalUpserted: 10, ExpansionsProcessed: 2}, f.err
}

func (f *fakeSyncer) SyncPrices(ctx context.Context) (catalogsync.PriceResult, error) {
	f.prices++
	return catalogsync.PriceResult{}, f.err
}

func (f *fakeSyncer) BackfillFingerprints(ctx context.Context, limit int) (catalogsync.BackfillResult, error) {
	f.limit = limit
	return catalogsync.BackfillResult{Hashed: limit}, f.err
}

func TestProcessor_Routes(t *testing.T) {
	s := &fakeSyncer{}
	mux := NewProcessor(s).Handler()
	ctx := context.Background()

	require.NoError(t, mux.ProcessTask(ctx, asynq.NewTask(TypeCatalogSync, nil)))
	require.NoError(t, mux.ProcessTask(ctx, asynq.NewTask(TypePriceSync, nil)))
	require.Equal(t, 1, s.catalog)
	require.Equal(t, 1, s.prices)

	require.NoError(t, mux.ProcessTask(ctx, asynq.NewTask(TypeFingerprintBackfill, []byte(`{"limit":25}`))))
	require.Equal(t, 25, s.limit)

	require.NoError(t, mux.ProcessTask(ctx, asynq.NewTask(TypeFingerprintBackfill, nil)))
	require.Equal(t, DefaultBackfillLimit, s.limit)

	err := mux.ProcessTask(ctx, asynq.NewTask(TypeFingerprintBackfill, []byte(`{`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessor_PropagatesErrors(t *testing.T) {
	s := &fakeSyncer{err: errors.New("list expansions: 401")}
	err := NewProcessor(s).Handler().ProcessTask(context.Background(), asynq.NewTask(TypeCatalogSync, nil))
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	mr := miniredis.RunT(t)
	sch := asynq.NewScheduler(asynq.RedisClientOpt{Addr: mr.Addr()}, nil)

	ids, err := Register(sch, DefaultSchedule())
	require.NoError(t, err)
	require.Len(t, ids, 3)

	ids, err = Register(sch, Schedule{Prices: "*/5 * * * *"})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	_, err = Register(sch, Schedule{Catalog: "not a cron"})
	require.Error(t, err)
}

func TestSchedule_Unset(t *testing.T) {
	require.True(t, Schedule{}.Unset())
	require.True(t, Schedule{BackfillLimit: 10}.Unset())
	require.False(t, Schedule{Prices: "@hourly"}.Unset())
	require.False(t, DefaultSchedule().Unset())
}

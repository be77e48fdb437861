package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/BearBump/VaultTrack/config"
	"github.com/BearBump/VaultTrack/internal/broker/kafka"
	"github.com/BearBump/VaultTrack/internal/cache"
	"github.com/BearBump/VaultTrack/internal/cache/rediscache"
	"github.com/BearBump/VaultTrack/internal/integrations/cardtrader"
	"github.com/BearBump/VaultTrack/internal/integrations/carrier"
	"github.com/BearBump/VaultTrack/internal/integrations/carrier/fake"
	"github.com/BearBump/VaultTrack/internal/integrations/carrier/sendcloud"
	"github.com/BearBump/VaultTrack/internal/integrations/carrier/ship24"
	"github.com/BearBump/VaultTrack/internal/jobs"
	"github.com/BearBump/VaultTrack/internal/metrics"
	"github.com/BearBump/VaultTrack/internal/models"
	"github.com/BearBump/VaultTrack/internal/services/catalogsync"
	"github.com/BearBump/VaultTrack/internal/services/matching"
	"github.com/BearBump/VaultTrack/internal/services/poller"
	"github.com/BearBump/VaultTrack/internal/storage/pgvault"
)

// workerStore is what pgvault.Storage offers the worker.
type workerStore interface {
	poller.Repository
	catalogsync.Store
	matching.CatalogSource
}

type jobRunner interface {
	Run(ctx context.Context) error
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (st workerStore, closeFn func(), err error)
	newProducer    func(cfg *config.Config) poller.Producer
	newRateLimiter func(cfg *config.Config) poller.RateLimiter
	newCache       func(cfg *config.Config) cache.BytesCache
	newCarriers    func(cfg *config.Config) carrier.Registry
	newCatalog     func(cfg *config.Config) catalogsync.Upstream
	newJobRunner   func(cfg *config.Config, mux *asynq.ServeMux) (jobRunner, error)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStore, func(), error) {
			st, err := pgvault.New(cfg.PostgresConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) poller.Producer {
			return kafka.NewProducer(cfg.KafkaBrokers())
		},
		newRateLimiter: func(cfg *config.Config) poller.RateLimiter {
			return rediscache.NewRateLimiter(cfg.RedisAddr())
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			return rediscache.New(cfg.RedisAddr())
		},
		newCarriers: func(cfg *config.Config) carrier.Registry {
			// fake всегда доступен для демо-посылок
			reg := carrier.Registry{models.ProviderFake: fake.New()}
			if cfg.Ship24.APIKey != "" {
				reg[models.ProviderShip24] = ship24.New(cfg.Ship24.BaseURL, cfg.Ship24.APIKey)
			}
			if cfg.Sendcloud.PublicKey != "" && cfg.Sendcloud.SecretKey != "" {
				reg[models.ProviderSendcloud] = sendcloud.New(cfg.Sendcloud.BaseURL, cfg.Sendcloud.PublicKey, cfg.Sendcloud.SecretKey)
			}
			return reg
		},
		newCatalog: func(cfg *config.Config) catalogsync.Upstream {
			c := cardtrader.New(cfg.CardTrader.BaseURL, cfg.CardTrader.Token)
			if cfg.CardTrader.GameID > 0 {
				c = c.WithGame(cfg.CardTrader.GameID)
			}
			return c
		},
		newJobRunner: newAsynqRunner,
	}
}

type asynqRunner struct {
	srv *asynq.Server
	sch *asynq.Scheduler
	mux *asynq.ServeMux
}

func newAsynqRunner(cfg *config.Config, mux *asynq.ServeMux) (jobRunner, error) {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: config.Or(cfg.Sync.Concurrency, 1),
	})
	sch := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})

	schedule := cfg.Sync.Schedule
	if schedule.Unset() {
		limit := schedule.BackfillLimit
		schedule = jobs.DefaultSchedule()
		schedule.BackfillLimit = limit
	}
	schedule.BackfillLimit = config.Or(schedule.BackfillLimit, cfg.Sync.BackfillLimit)
	if _, err := jobs.Register(sch, schedule); err != nil {
		return nil, err
	}
	return &asynqRunner{srv: srv, sch: sch, mux: mux}, nil
}

func (r *asynqRunner) Run(ctx context.Context) error {
	if err := r.sch.Start(); err != nil {
		return err
	}
	defer r.sch.Shutdown()

	if err := r.srv.Start(r.mux); err != nil {
		return err
	}
	<-ctx.Done()
	r.srv.Shutdown()
	return ctx.Err()
}

func RunVaultWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	plannerCfg := poller.DefaultPlannerConfig()
	plannerCfg.InTransitMinDelay = config.Seconds(cfg.Vault.WorkerNextCheckInTransitMinSeconds, plannerCfg.InTransitMinDelay)
	plannerCfg.InTransitMaxDelay = config.Seconds(cfg.Vault.WorkerNextCheckInTransitMaxSeconds, plannerCfg.InTransitMaxDelay)
	plannerCfg.PendingDelay = config.Seconds(cfg.Vault.WorkerNextCheckPendingSeconds, plannerCfg.PendingDelay)
	if len(cfg.Vault.WorkerBackoffSeconds) > 0 {
		plannerCfg.Backoff = make([]time.Duration, len(cfg.Vault.WorkerBackoffSeconds))
		for i, n := range cfg.Vault.WorkerBackoffSeconds {
			plannerCfg.Backoff[i] = config.Seconds(n, 0)
		}
	}

	p := poller.New(st, f.newCarriers(cfg), f.newProducer(cfg), f.newRateLimiter(cfg), cfg.TrackingTopic()).
		WithSettings(
			config.Seconds(cfg.Vault.WorkerPollIntervalSeconds, 2*time.Second),
			config.Or(cfg.Vault.WorkerBatchSize, 100),
			config.Or(cfg.Vault.WorkerConcurrency, 10),
			config.Seconds(cfg.Vault.WorkerLeaseSeconds, 120*time.Second),
			int64(config.Or(cfg.Vault.WorkerRateLimitPerMinute, 120)),
		).
		WithPlanner(plannerCfg).
		WithProviderRateLimits(cfg.Vault.WorkerProviderRateLimits).
		WithDefaultProvider(cfg.Vault.WorkerDefaultProvider).
		WithMetrics(m)

	invalidator := matching.New(st, f.newCache(cfg), config.Seconds(cfg.Vault.FingerprintCacheTTLSeconds, time.Hour))
	syncer := catalogsync.New(f.newCatalog(cfg), st, invalidator).
		WithSettings(catalogsync.Settings{
			CallDelay:    config.Millis(cfg.Sync.CallDelayMillis, catalogsync.DefaultCallDelay),
			PricingDelay: config.Millis(cfg.Sync.PricingDelayMillis, catalogsync.DefaultPricingDelay),
			ChunkSize:    cfg.Sync.ChunkSize,
		}).
		WithMetrics(m)

	runner, err := f.newJobRunner(cfg, jobs.NewProcessor(syncer).Handler())
	if err != nil {
		return err
	}

	httpOpts.poller = p
	httpOpts.sync = syncer
	httpOpts.metrics = m
	if httpOpts.httpAddr == "" {
		httpOpts.httpAddr = config.Or(cfg.Vault.WorkerHTTPAddr, ":8082")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error {
		err := runWorkerHTTPServer(gctx, httpOpts)
		if err != nil && gctx.Err() == nil {
			slog.Error("worker http server", "error", err.Error())
			return err
		}
		return gctx.Err()
	})
	return g.Wait()
}

func swaggerPathFromEnv() string {
	return os.Getenv("swaggerPath")
}

package main

import (
	"github.com/hibiken/asynq"

	"github.com/BearBump/VaultTrack/config"
	"github.com/BearBump/VaultTrack/internal/cache"
	"github.com/BearBump/VaultTrack/internal/cache/rediscache"
	"github.com/BearBump/VaultTrack/internal/integrations/cardtrader"
	"github.com/BearBump/VaultTrack/internal/jobs"
	"github.com/BearBump/VaultTrack/internal/services/catalogsync"
	"github.com/BearBump/VaultTrack/internal/services/matching"
	"github.com/BearBump/VaultTrack/internal/storage/pgvault"
)

type ctlStore interface {
	catalogsync.Store
	matching.CatalogSource
}

// ctlDeps builds the backends a command needs. Only commands that talk to
// the database or the queue touch them.
type ctlDeps struct {
	loadConfig  func(path string) (*config.Config, error)
	openStore   func(cfg *config.Config) (st ctlStore, closeFn func(), err error)
	newCache    func(cfg *config.Config) cache.BytesCache
	newUpstream func(cfg *config.Config) catalogsync.Upstream
	newEnqueuer func(cfg *config.Config) (q jobs.Enqueuer, closeFn func(), err error)
}

func defaultCtlDeps() ctlDeps {
	return ctlDeps{
		loadConfig: config.Load,
		openStore: func(cfg *config.Config) (ctlStore, func(), error) {
			st, err := pgvault.New(cfg.PostgresConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			return rediscache.New(cfg.RedisAddr())
		},
		newUpstream: func(cfg *config.Config) catalogsync.Upstream {
			c := cardtrader.New(cfg.CardTrader.BaseURL, cfg.CardTrader.Token)
			if cfg.CardTrader.GameID > 0 {
				c = c.WithGame(cfg.CardTrader.GameID)
			}
			return c
		},
		newEnqueuer: func(cfg *config.Config) (jobs.Enqueuer, func(), error) {
			c := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			return c, func() { _ = c.Close() }, nil
		},
	}
}

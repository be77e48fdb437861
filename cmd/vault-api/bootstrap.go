package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/BearBump/VaultTrack/config"
	"github.com/BearBump/VaultTrack/internal/api/httpapi"
	"github.com/BearBump/VaultTrack/internal/broker/kafka"
	"github.com/BearBump/VaultTrack/internal/cache/rediscache"
	"github.com/BearBump/VaultTrack/internal/integrations/carrier/ship24"
	"github.com/BearBump/VaultTrack/internal/metrics"
	"github.com/BearBump/VaultTrack/internal/services/matching"
	"github.com/BearBump/VaultTrack/internal/services/notifications"
	"github.com/BearBump/VaultTrack/internal/services/reconciler"
	"github.com/BearBump/VaultTrack/internal/services/shipments"
	"github.com/BearBump/VaultTrack/internal/storage/pgvault"
)

type vaultAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     vaultAPIOpts
	handler  http.Handler
	svc      *shipments.Service
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapVaultAPI() *vaultAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	app := &vaultAPIApp{
		opts: vaultAPIOpts{
			grpcAddr:      config.Or(cfg.Vault.GRPCAddr, ":50051"),
			httpAddr:      config.Or(cfg.Vault.HTTPAddr, ":8080"),
			topic:         cfg.TrackingTopic(),
			consumerGroup: config.Or(cfg.Vault.KafkaConsumerGroup, "vault-api"),
		},
	}

	st := mustOpenPostgresWithRetry(cfg.PostgresConnString(), 60*time.Second)
	app.closers = append(app.closers, st.Close)

	rc := rediscache.New(cfg.RedisAddr())
	app.closers = append(app.closers, func() { _ = rc.Close() })

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	producer := kafka.NewProducer(cfg.KafkaBrokers())
	app.closers = append(app.closers, func() { _ = producer.Close() })
	notifier := notifications.New(st, producer, cfg.NotificationsTopic())

	rec := reconciler.New(st, notifier).
		WithFanOut(cfg.Vault.ReconcileFanOut).
		WithMetrics(m)

	svc := shipments.New(st, rec, rc, config.Seconds(cfg.Vault.CurrentStatusTTLSeconds, 10*time.Minute))
	rec.WithInvalidator(svc)
	if cfg.Ship24.APIKey != "" {
		svc = svc.WithRegistrar(ship24.New(cfg.Ship24.BaseURL, cfg.Ship24.APIKey))
	}
	app.svc = svc

	matcher := matching.New(st, rc, config.Seconds(cfg.Vault.FingerprintCacheTTLSeconds, time.Hour)).
		WithThreshold(cfg.Vault.MatchThreshold).
		WithMetrics(m)

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	app.closers = append(app.closers, func() { _ = queue.Close() })

	app.handler = httpapi.New(httpapi.Deps{
		Reconciler:          rec,
		Shipments:           svc,
		Notifications:       st,
		Matcher:             matcher,
		Jobs:                queue,
		Metrics:             m,
		Ship24WebhookSecret: cfg.Ship24.WebhookSecret,
		SwaggerPath:         os.Getenv("swaggerPath"),
	}).Routes()

	app.consumer = kafka.NewConsumer(cfg.KafkaBrokers(), app.opts.topic, app.opts.consumerGroup)
	app.closers = append(app.closers, func() { _ = app.consumer.Close() })

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return app
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgvault.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgvault.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *vaultAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *vaultAPIApp) Run() error {
	return runVaultAPI(a.ctx, a.opts, a.handler, a.svc, a.consumer)
}

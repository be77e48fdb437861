package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/broker/messages"
	"github.com/BearBump/VaultTrack/internal/integrations/carrier"
	"github.com/BearBump/VaultTrack/internal/metrics"
	"github.com/BearBump/VaultTrack/internal/models"
)

type Repository interface {
	ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error)
}

// Carriers resolves the client for a shipment's provider.
type Carriers interface {
	For(provider string) (carrier.Client, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

const publishAttempts = 10

type Poller struct {
	repo     Repository
	carriers Carriers
	producer Producer
	rl       RateLimiter
	metrics  *metrics.Metrics

	topic string

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64
	providerLimits     map[string]int64
	defaultProvider    string

	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, carriers Carriers, producer Producer, rl RateLimiter, topic string) *Poller {
	return &Poller{
		repo: repo, carriers: carriers, producer: producer, rl: rl, topic: topic,
		planner:            DefaultPlanner(),
		pollInterval:       2 * time.Second,
		batchSize:          100,
		concurrency:        10,
		lease:              120 * time.Second,
		rateLimitPerMinute: 120,
		providerLimits:     map[string]int64{},
		defaultProvider:    models.ProviderShip24,
		sleep:              sleepCtx,
		now:                time.Now,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if lease > 0 {
		p.lease = lease
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

// WithProviderRateLimits overrides the per-minute limit for single providers.
func (p *Poller) WithProviderRateLimits(limits map[string]int) *Poller {
	for prov, n := range limits {
		if n > 0 {
			p.providerLimits[prov] = int64(n)
		}
	}
	return p
}

// WithDefaultProvider is used for shipments registered without a provider.
func (p *Poller) WithDefaultProvider(provider string) *Poller {
	if provider != "" {
		p.defaultProvider = provider
	}
	return p
}

func (p *Poller) WithMetrics(m *metrics.Metrics) *Poller {
	p.metrics = m
	return p
}

// Trigger forces an immediate poll cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalClaimed:   p.totalClaimed.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalErrors:    p.totalErrors.Load(),
		InFlight:       p.inFlight.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

// Settings is the operational configuration shown on the worker's /config.
type Settings struct {
	PollInterval       string           `json:"pollInterval"`
	BatchSize          int              `json:"batchSize"`
	Concurrency        int              `json:"concurrency"`
	Lease              string           `json:"lease"`
	RateLimitPerMinute int64            `json:"rateLimitPerMinute"`
	ProviderLimits     map[string]int64 `json:"providerLimits,omitempty"`
	DefaultProvider    string           `json:"defaultProvider"`
	Providers          []string         `json:"providers,omitempty"`
	Topic              string           `json:"topic"`
}

func (p *Poller) Settings() Settings {
	s := Settings{
		PollInterval:       p.pollInterval.String(),
		BatchSize:          p.batchSize,
		Concurrency:        p.concurrency,
		Lease:              p.lease.String(),
		RateLimitPerMinute: p.rateLimitPerMinute,
		ProviderLimits:     p.providerLimits,
		DefaultProvider:    p.defaultProvider,
		Topic:              p.topic,
	}
	if r, ok := p.carriers.(carrier.Registry); ok {
		s.Providers = r.Providers()
	}
	sort.Strings(s.Providers)
	return s
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

func (p *Poller) runOnce(ctx context.Context) {
	now := p.now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	items, err := p.repo.ClaimDueShipments(ctx, now, p.batchSize, p.lease)
	if err != nil {
		slog.Error("claim due shipments", "error", err.Error())
		p.setLastError(err)
		return
	}
	p.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, sh := range items {
		sem <- struct{}{}
		wg.Add(1)
		p.inFlight.Add(1)
		go func(sh *models.Shipment) {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := p.processOne(ctx, sh); err != nil {
				p.totalErrors.Add(1)
				p.setLastError(err)
				slog.Error("process shipment", "shipment_id", sh.ID, "tracking_code", sh.TrackingCode, "error", err.Error())
			}
			p.totalProcessed.Add(1)
		}(sh)
	}
	wg.Wait()
}

func (p *Poller) providerOf(sh *models.Shipment) string {
	if sh.Provider != "" {
		return sh.Provider
	}
	return p.defaultProvider
}

func (p *Poller) waitTurn(ctx context.Context, provider string, now time.Time) error {
	if p.rl == nil || p.rateLimitPerMinute <= 0 {
		return nil
	}
	limit := p.rateLimitPerMinute
	if n, ok := p.providerLimits[provider]; ok {
		limit = n
	}

	minuteKey := fmt.Sprintf("rl:provider:%s:%s", provider, now.Format("200601021504"))
	allowed, n, err := p.rl.Allow(ctx, minuteKey, limit, 70*time.Second)
	if err != nil {
		return err
	}
	if !allowed {
		// Слишком много запросов в минуту: подождём немного, чтобы разгрузить провайдера.
		slog.Warn("rate limit exceeded", "provider", provider, "count", n)
		p.sleep(ctx, 500*time.Millisecond)
	}
	return nil
}

// processOne checks one shipment and publishes the outcome. A provider
// failure is not an error here: it is published with a backoff schedule.
func (p *Poller) processOne(ctx context.Context, sh *models.Shipment) error {
	now := p.now().UTC()
	provider := p.providerOf(sh)

	if err := p.waitTurn(ctx, provider, now); err != nil {
		return err
	}

	msg := messages.TrackingUpdated{
		ShipmentID:   sh.ID,
		OwnerID:      sh.OwnerID,
		TrackingCode: sh.TrackingCode,
		Provider:     provider,
		CheckedAt:    now,
	}

	upd, err := p.check(ctx, provider, sh)
	if err != nil {
		e := err.Error()
		msg.Error = &e
		msg.NextCheckAt = now.Add(p.planner.BackoffDelay(sh.CheckFailCount + 1))
		p.metrics.PollerCheck(provider, "error")
	} else {
		if upd.TrackingCode == "" {
			upd.TrackingCode = sh.TrackingCode
		}
		msg.Update = &upd
		msg.NextCheckAt = now.Add(p.planner.NextCheckDelay(upd.Milestone))
		p.metrics.PollerCheck(provider, "ok")
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}
	return p.publish(ctx, []byte(sh.ID), b)
}

func (p *Poller) check(ctx context.Context, provider string, sh *models.Shipment) (models.CanonicalUpdate, error) {
	c, err := p.carriers.For(provider)
	if err != nil {
		return models.CanonicalUpdate{}, err
	}
	return c.GetTracking(ctx, sh)
}

func (p *Poller) publish(ctx context.Context, key, value []byte) error {
	// Kafka может быть не готова сразу после старта docker compose,
	// поэтому делаем небольшой retry.
	var pubErr error
	for i := 0; i < publishAttempts; i++ {
		if pubErr = p.producer.Publish(ctx, p.topic, key, value); pubErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		p.sleep(ctx, time.Duration(150*(i+1))*time.Millisecond)
	}
	return pubErr
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

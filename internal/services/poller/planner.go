package poller

import (
	"math/rand"
	"time"

	"github.com/BearBump/VaultTrack/internal/models"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	// FinalDelay is kept for delivered and cancelled shipments, which are
	// claimed only if someone asks for a manual refresh.
	FinalDelay time.Duration

	// In-transit shipments are checked again after a random delay in
	// [InTransitMinDelay, InTransitMaxDelay].
	InTransitMinDelay time.Duration
	InTransitMaxDelay time.Duration

	// PendingDelay covers pending, exception and unknown.
	PendingDelay time.Duration

	// Backoff[i] is the delay after the (i+1)-th consecutive failure; the
	// last step repeats.
	Backoff []time.Duration
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		FinalDelay:        365 * 24 * time.Hour,
		InTransitMinDelay: 30 * time.Minute,
		InTransitMaxDelay: 120 * time.Minute,
		PendingDelay:      90 * time.Minute,
		Backoff:           []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute, 60 * time.Minute},
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

// NewPlanner fills every unset or non-positive field from DefaultPlannerConfig.
func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	positiveOr(&cfg.FinalDelay, def.FinalDelay)
	positiveOr(&cfg.InTransitMinDelay, def.InTransitMinDelay)
	positiveOr(&cfg.InTransitMaxDelay, def.InTransitMaxDelay)
	positiveOr(&cfg.PendingDelay, def.PendingDelay)
	if cfg.InTransitMaxDelay < cfg.InTransitMinDelay {
		cfg.InTransitMaxDelay = cfg.InTransitMinDelay
	}

	ladder := make([]time.Duration, max(len(cfg.Backoff), len(def.Backoff)))
	for i := range ladder {
		if i < len(cfg.Backoff) {
			ladder[i] = cfg.Backoff[i]
		}
		if i < len(def.Backoff) {
			positiveOr(&ladder[i], def.Backoff[i])
		} else {
			positiveOr(&ladder[i], ladder[i-1])
		}
	}
	cfg.Backoff = ladder

	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func positiveOr(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

func (p *Planner) Config() PlannerConfig { return p.cfg }

// NextCheckDelay is how long to wait before polling a shipment in state m
// again. In-transit delays are jittered so shipments registered together do
// not hit the provider together.
func (p *Planner) NextCheckDelay(m models.Milestone) time.Duration {
	switch {
	case m.Final():
		return p.cfg.FinalDelay
	case m == models.MilestoneInTransit:
		lo := int(p.cfg.InTransitMinDelay / time.Second)
		hi := int(p.cfg.InTransitMaxDelay / time.Second)
		if hi <= lo {
			return p.cfg.InTransitMinDelay
		}
		return time.Duration(lo+p.r.Intn(hi-lo+1)) * time.Second
	default:
		return p.cfg.PendingDelay
	}
}

// BackoffDelay is the retry delay once a shipment has failed failCount
// times in a row.
func (p *Planner) BackoffDelay(failCount int32) time.Duration {
	i := int(failCount) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(p.cfg.Backoff) {
		i = len(p.cfg.Backoff) - 1
	}
	return p.cfg.Backoff[i]
}

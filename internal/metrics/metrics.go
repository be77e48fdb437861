// Package metrics holds the Prometheus collectors shared by the api and the
// worker. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vaulttrack"

type Metrics struct {
	gatherer prometheus.Gatherer

	webhookPayloads *prometheus.CounterVec
	reconcile       *prometheus.CounterVec
	pollerChecks    *prometheus.CounterVec
	cardMatches     *prometheus.CounterVec
	syncItems       *prometheus.CounterVec
	syncFailures    *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
}

// New registers all collectors on reg. Passing a fresh registry keeps tests
// independent of each other.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		webhookPayloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_payloads_total",
			Help:      "Carrier webhook payloads received, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		reconcile: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_shipments_total",
			Help:      "Shipments touched by tracking reconciliation, by outcome.",
		}, []string{"outcome"}),
		pollerChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poller_checks_total",
			Help:      "Provider status checks made by the poller.",
		}, []string{"provider", "outcome"}),
		cardMatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "card_match_requests_total",
			Help:      "Card identification requests, by result.",
		}, []string{"result"}),
		syncItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_sync_items_total",
			Help:      "Catalog entries written by sync jobs.",
		}, []string{"job"}),
		syncFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_sync_failures_total",
			Help:      "Expansions or entries skipped by sync jobs after an error.",
		}, []string{"job"}),
		syncDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_sync_duration_seconds",
			Help:      "Wall time of sync job runs.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}, []string{"job"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) WebhookPayload(provider, outcome string) {
	if m == nil {
		return
	}
	m.webhookPayloads.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) Reconciled(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconcile.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) PollerCheck(provider, outcome string) {
	if m == nil {
		return
	}
	m.pollerChecks.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) CardMatch(result string) {
	if m == nil {
		return
	}
	m.cardMatches.WithLabelValues(result).Inc()
}

func (m *Metrics) SyncItems(job string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.syncItems.WithLabelValues(job).Add(float64(n))
}

func (m *Metrics) SyncFailure(job string) {
	if m == nil {
		return
	}
	m.syncFailures.WithLabelValues(job).Inc()
}

func (m *Metrics) SyncDuration(job string, seconds float64) {
	if m == nil {
		return
	}
	m.syncDuration.WithLabelValues(job).Observe(seconds)
}

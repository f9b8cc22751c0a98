package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the portfolio service
type Metrics struct {
	BalanceUpdates *prometheus.CounterVec
	CacheRequests  *prometheus.CounterVec
	PriceFetch     prometheus.Histogram
}

// New registers all collectors on reg. A nil reg gets a private registry,
// which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		BalanceUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Name:      "balance_updates_total",
			Help:      "Balance update transactions by result (committed, rolled_back, conflict).",
		}, []string{"result"}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Name:      "cache_requests_total",
			Help:      "Cache lookups by cache name and result (hit, miss, error).",
		}, []string{"cache", "result"}),
		PriceFetch: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portfolio",
			Name:      "price_fetch_seconds",
			Help:      "Latency of pricing gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) balanceUpdate(result string) {
	if m != nil {
		m.BalanceUpdates.WithLabelValues(result).Inc()
	}
}

// BalanceCommitted, BalanceRolledBack and BalanceConflict are nil-safe
func (m *Metrics) BalanceCommitted()  { m.balanceUpdate("committed") }
func (m *Metrics) BalanceRolledBack() { m.balanceUpdate("rolled_back") }
func (m *Metrics) BalanceConflict()   { m.balanceUpdate("conflict") }

// CacheResult counts one lookup against the named cache; nil-safe
func (m *Metrics) CacheResult(cache, result string) {
	if m != nil {
		m.CacheRequests.WithLabelValues(cache, result).Inc()
	}
}

// ObservePriceFetch records a gateway call duration in seconds; nil-safe
func (m *Metrics) ObservePriceFetch(seconds float64) {
	if m != nil {
		m.PriceFetch.Observe(seconds)
	}
}

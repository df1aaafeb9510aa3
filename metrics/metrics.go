// Package metrics exposes Prometheus metrics for lookup cycles, upstream
// feed requests and reconciliation match tiers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
)

type Collector struct {
	reg *prometheus.Registry

	FeedRequests *prometheus.CounterVec   // op, outcome
	FeedDuration *prometheus.HistogramVec // op

	LookupCycles   *prometheus.CounterVec // outcome
	LookupDuration prometheus.Histogram
	MatchTiers     *prometheus.CounterVec // tier
	ArrivalsShown  prometheus.Gauge

	RefreshInterval prometheus.Gauge // seconds
}

func NewCollector(refreshInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoparrivals_feed_requests_total",
			Help: "Upstream feed operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		FeedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stoparrivals_feed_request_duration_seconds",
			Help:    "Duration of upstream feed operations including retries.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"op"}),
		LookupCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoparrivals_lookup_cycles_total",
			Help: "Lookup cycles by outcome.",
		}, []string{"outcome"}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stoparrivals_lookup_duration_seconds",
			Help:    "Duration of a full lookup cycle.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		MatchTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoparrivals_match_tier_total",
			Help: "Joined arrivals by the tier that matched them.",
		}, []string{"tier"}),
		ArrivalsShown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stoparrivals_last_lookup_arrivals",
			Help: "Number of joined arrivals in the last successful cycle.",
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stoparrivals_refresh_interval_seconds",
			Help: "Auto-refresh interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.FeedRequests, c.FeedDuration,
		c.LookupCycles, c.LookupDuration, c.MatchTiers, c.ArrivalsShown,
		c.RefreshInterval,
	)
	c.RefreshInterval.Set(refreshInterval.Seconds())

	return c
}

// ObserveFeedRequest records one upstream operation.
func (c *Collector) ObserveFeedRequest(op, outcome string, elapsed time.Duration) {
	c.FeedRequests.WithLabelValues(op, outcome).Inc()
	c.FeedDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveLookup records one lookup cycle. joined is nil for failed cycles.
func (c *Collector) ObserveLookup(outcome string, elapsed time.Duration, joined []arrivals.JoinedArrival) {
	c.LookupCycles.WithLabelValues(outcome).Inc()
	c.LookupDuration.Observe(elapsed.Seconds())
	if outcome != "ok" {
		return
	}
	c.ArrivalsShown.Set(float64(len(joined)))
	for _, j := range joined {
		c.MatchTiers.WithLabelValues(string(j.Tier)).Inc()
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
)

func TestCollector_Observations(t *testing.T) {
	c := NewCollector(30 * time.Second)

	c.ObserveFeedRequest("list planned", "ok", 20*time.Millisecond)
	c.ObserveFeedRequest("list planned", "transport", time.Second)
	c.ObserveLookup("ok", 50*time.Millisecond, []arrivals.JoinedArrival{
		{Tier: arrivals.TierID}, {Tier: arrivals.TierID}, {Tier: arrivals.TierNone},
	})
	c.ObserveLookup("not_found", 10*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.FeedRequests.WithLabelValues("list planned", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FeedRequests.WithLabelValues("list planned", "transport")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.MatchTiers.WithLabelValues("id")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.MatchTiers.WithLabelValues("none")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.ArrivalsShown))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.LookupCycles.WithLabelValues("not_found")))
	assert.Equal(t, 30.0, testutil.ToFloat64(c.RefreshInterval))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(20 * time.Second)
	c.ObserveFeedRequest("lookup stop", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `stoparrivals_feed_requests_total{op="lookup stop",outcome="ok"} 1`)
}

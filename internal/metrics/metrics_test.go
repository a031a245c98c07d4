package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Observers(t *testing.T) {
	c := NewCollector(5*time.Second, 300*time.Second, 15*time.Second)

	c.CacheHit("bus")
	c.CacheHit("bus")
	c.CacheMiss("weather")
	c.UpstreamRequest("bus", "status")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheHits.WithLabelValues("bus")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheMisses.WithLabelValues("weather")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.UpstreamRequests.WithLabelValues("bus", "status")))
	assert.Equal(t, 300.0, testutil.ToFloat64(c.WeatherCacheWindow))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(5*time.Second, 300*time.Second, 15*time.Second)
	c.SamplesRecorded.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "commute_sampler_records_total 1")
	assert.Contains(t, string(body), "commute_bus_cache_window_seconds 5")
}

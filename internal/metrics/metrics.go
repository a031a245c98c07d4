package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	CacheHits   *prometheus.CounterVec // key label: bus|weather
	CacheMisses *prometheus.CounterVec

	UpstreamRequests *prometheus.CounterVec // feed, outcome

	SamplesRecorded prometheus.Counter
	SamplesEmpty    prometheus.Counter
	SampleErrors    prometheus.Counter
	SamplerActive   prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	PublishDuration prometheus.Histogram

	BusCacheWindow     prometheus.Gauge // seconds
	WeatherCacheWindow prometheus.Gauge // seconds
	SampleInterval     prometheus.Gauge // seconds
}

func NewCollector(busWindow, weatherWindow, sampleInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commute_cache_hits_total",
			Help: "Cache lookups answered from a stored value.",
		}, []string{"key"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commute_cache_misses_total",
			Help: "Cache lookups that called the fetch function.",
		}, []string{"key"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commute_upstream_requests_total",
			Help: "Upstream API requests by feed and outcome.",
		}, []string{"feed", "outcome"}),
		SamplesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commute_sampler_records_total",
			Help: "Arrival samples appended to the log.",
		}),
		SamplesEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commute_sampler_empty_total",
			Help: "Sampling ticks that found no arrivals.",
		}),
		SampleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commute_sampler_errors_total",
			Help: "Sampling ticks that failed to write.",
		}),
		SamplerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commute_sampler_active",
			Help: "1 while inside the daily sampling window, 0 otherwise.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commute_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commute_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commute_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "commute_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		BusCacheWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commute_bus_cache_window_seconds",
			Help: "Bus arrival cache window in seconds.",
		}),
		WeatherCacheWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commute_weather_cache_window_seconds",
			Help: "Weather forecast cache window in seconds.",
		}),
		SampleInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commute_sample_interval_seconds",
			Help: "Sampling interval in seconds.",
		}),
	}

	// Register
	reg.MustRegister(
		c.CacheHits, c.CacheMisses, c.UpstreamRequests,
		c.SamplesRecorded, c.SamplesEmpty, c.SampleErrors, c.SamplerActive,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.BusCacheWindow, c.WeatherCacheWindow, c.SampleInterval,
	)

	// Set static gauges
	c.BusCacheWindow.Set(busWindow.Seconds())
	c.WeatherCacheWindow.Set(weatherWindow.Seconds())
	c.SampleInterval.Set(sampleInterval.Seconds())

	return c
}

// CacheHit and CacheMiss satisfy cache.Observer.
func (c *Collector) CacheHit(key string)  { c.CacheHits.WithLabelValues(key).Inc() }
func (c *Collector) CacheMiss(key string) { c.CacheMisses.WithLabelValues(key).Inc() }

// UpstreamRequest satisfies upstream.Observer.
func (c *Collector) UpstreamRequest(feed, outcome string) {
	c.UpstreamRequests.WithLabelValues(feed, outcome).Inc()
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}

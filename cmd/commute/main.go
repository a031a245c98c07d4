package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/time/rate"

	"commute-api/internal/api"
	"commute-api/internal/arrival"
	"commute-api/internal/cache"
	"commute-api/internal/config"
	"commute-api/internal/db"
	"commute-api/internal/metrics"
	"commute-api/internal/publisher"
	"commute-api/internal/retry"
	"commute-api/internal/sampler"
	"commute-api/internal/schedule"
	"commute-api/internal/upstream"
)

func main() {
	config.InitLogging()

	// Load configuration from .env, config.yml and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dsn := cfg.DatabaseURL
	if cfg.ScheduleDBName != "" {
		if dsn, err = db.WithDBName(dsn, cfg.ScheduleDBName); err != nil {
			log.Fatalf("compose DSN: %v", err)
		}
	}
	sqlDB, err := db.Open(dsn)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		log.Fatalf("db ping error: %v", err)
	}
	if err := db.Migrate(sqlDB); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.BusCacheWindow, cfg.WeatherCacheWindow, cfg.SampleInterval)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer shutdown(srv, 3*time.Second)
	}

	// NATS is optional
	var samplePub sampler.SamplePublisher
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		samplePub = pub
	}

	// Upstream clients share one limiter
	limiter := rate.NewLimiter(rate.Limit(cfg.UpstreamRatePerSec), 1)
	httpClient := &http.Client{}
	obs := upstreamObserver(mcol)
	parser := arrival.NewParser(arrival.SystemClock, cfg.Location)
	transit := upstream.NewTransitClient(upstream.TransitConfig{
		ServiceKey: cfg.ServiceKey,
		StationID:  cfg.BusStationID,
		RouteID:    cfg.BusRouteID,
		Ord:        cfg.BusOrd,
		Timeout:    cfg.UpstreamTimeout,
		Retry: retry.Policy{
			MaxAttempts: cfg.UpstreamMaxAttempts,
			Delay:       cfg.UpstreamRetryDelay,
		},
	}, parser, httpClient, limiter, obs)
	weather := upstream.NewWeatherClient(upstream.WeatherConfig{
		ServiceKey: cfg.ServiceKey,
		NX:         cfg.WeatherNX,
		NY:         cfg.WeatherNY,
		Timeout:    cfg.UpstreamTimeout,
	}, arrival.SystemClock, cfg.Location, httpClient, limiter, obs)

	// Background sampler
	rec := sampler.NewRecorder(cfg.SampleCSVPath, transit, samplePub, arrival.SystemClock, cfg.Location, mcol)
	if err := rec.Init(); err != nil {
		log.Fatalf("sampler init error: %v", err)
	}
	mgr := sampler.NewManager(rec, cfg.Location, cfg.SampleWindowStart, cfg.SampleWindowEnd, cfg.SampleInterval, arrival.SystemClock, mcol)
	mgr.Start(ctx)

	// HTTP API
	info := api.NewInfoHandler(cache.New(16, nil, cacheObserver(mcol)), transit, weather, cfg.BusCacheWindow, cfg.WeatherCacheWindow)
	svc := schedule.NewService(db.NewScheduleStore(sqlDB), schedule.Options{
		Parts:           cfg.Static.Schedule.Parts,
		PartnerPart:     cfg.Static.Schedule.PartnerPart,
		DefaultPartner:  cfg.Static.Schedule.DefaultPartner,
		TrackedEmployee: cfg.Static.Schedule.TrackedEmployee,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(info, svc, cfg.Static.CORS.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
			cancel()
		}
	}()

	// Block until context cancelled
	<-ctx.Done()
	shutdown(srv, 10*time.Second)
	mgr.Stop()
	log.Println("shutdown complete")
}

func shutdown(srv *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown %s: %v", srv.Addr, err)
	}
}

// The observers stay untyped nil when metrics are disabled.
func upstreamObserver(c *metrics.Collector) upstream.Observer {
	if c == nil {
		return nil
	}
	return c
}

func cacheObserver(c *metrics.Collector) cache.Observer {
	if c == nil {
		return nil
	}
	return c
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL    string
	ScheduleDBName string
	HTTPAddr       string

	ServiceKey   string
	BusStationID string
	BusRouteID   string
	BusOrd       string
	WeatherNX    int
	WeatherNY    int

	BusCacheWindow     time.Duration
	WeatherCacheWindow time.Duration

	UpstreamTimeout     time.Duration
	UpstreamMaxAttempts int
	UpstreamRetryDelay  time.Duration
	UpstreamRatePerSec  float64

	Location *time.Location

	// Sampling window as offsets from local midnight.
	SampleWindowStart time.Duration
	SampleWindowEnd   time.Duration
	SampleInterval    time.Duration
	SampleCSVPath     string

	NATSURL         string
	NATSSubject     string
	LogNATSSubjects bool
	MetricsAddr     string

	ConfigFile string
	Static     StaticConfig
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}
	cfg.ScheduleDBName = os.Getenv("SCHEDULE_DB_NAME")

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8000")

	// Upstream APIs
	cfg.ServiceKey = os.Getenv("SERVICE_KEY")
	cfg.BusStationID = getenvDefault("BUS_STATION_ID", "106000201")
	cfg.BusRouteID = getenvDefault("BUS_ROUTE_ID", "100100178")
	cfg.BusOrd = getenvDefault("BUS_ORD", "25")

	var err error
	if cfg.WeatherNX, err = intEnv("WEATHER_NX", 62, 1); err != nil {
		return nil, err
	}
	if cfg.WeatherNY, err = intEnv("WEATHER_NY", 128, 1); err != nil {
		return nil, err
	}

	// Cache windows (seconds)
	if cfg.BusCacheWindow, err = secondsEnv("BUS_CACHE_SECONDS", 5); err != nil {
		return nil, err
	}
	if cfg.WeatherCacheWindow, err = secondsEnv("WEATHER_CACHE_SECONDS", 300); err != nil {
		return nil, err
	}

	// Upstream request policy
	if cfg.UpstreamTimeout, err = secondsEnv("UPSTREAM_TIMEOUT_SEC", 10); err != nil {
		return nil, err
	}
	if cfg.UpstreamMaxAttempts, err = intEnv("UPSTREAM_MAX_ATTEMPTS", 3, 1); err != nil {
		return nil, err
	}
	delayMS, err := intEnv("UPSTREAM_RETRY_DELAY_MS", 1000, 0)
	if err != nil {
		return nil, err
	}
	cfg.UpstreamRetryDelay = time.Duration(delayMS) * time.Millisecond
	if v := os.Getenv("UPSTREAM_RATE_PER_SEC"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid UPSTREAM_RATE_PER_SEC: %q", v)
		}
		cfg.UpstreamRatePerSec = f
	} else {
		cfg.UpstreamRatePerSec = 5
	}

	// Time zone
	tzName := getenvDefault("TZ", "Asia/Seoul")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ: %v", err)
	}
	cfg.Location = loc

	// Daily sampling window
	if cfg.SampleWindowStart, err = clockEnv("SAMPLE_WINDOW_START", "04:50"); err != nil {
		return nil, err
	}
	if cfg.SampleWindowEnd, err = clockEnv("SAMPLE_WINDOW_END", "05:10"); err != nil {
		return nil, err
	}
	if cfg.SampleInterval, err = secondsEnv("SAMPLE_INTERVAL_SEC", 15); err != nil {
		return nil, err
	}
	cfg.SampleCSVPath = getenvDefault("SAMPLE_CSV_PATH", "./data/bus_data.csv")

	// NATS is optional; empty URL disables sample publishing.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubject = getenvDefault("NATS_SUBJECT", "commute.bus.samples")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.ConfigFile = getenvDefault("CONFIG_FILE", "config.yml")
	static, err := LoadStatic(cfg.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.ConfigFile, err)
	}
	cfg.Static = static

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks relations between settings that individual parsing
// cannot.
func (c *Config) Validate() error {
	switch {
	case c.BusCacheWindow <= 0 || c.WeatherCacheWindow <= 0:
		return errors.New("cache windows must be positive")
	case c.UpstreamMaxAttempts < 1:
		return errors.New("UPSTREAM_MAX_ATTEMPTS must be at least 1")
	case c.UpstreamTimeout <= 0:
		return errors.New("UPSTREAM_TIMEOUT_SEC must be positive")
	case c.SampleInterval <= 0:
		return errors.New("SAMPLE_INTERVAL_SEC must be positive")
	case c.SampleWindowEnd <= c.SampleWindowStart:
		return fmt.Errorf("sampling window end %s is not after start %s",
			formatClock(c.SampleWindowEnd), formatClock(c.SampleWindowStart))
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}

func intEnv(key string, def, minimum int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func secondsEnv(key string, def int) (time.Duration, error) {
	n, err := intEnv(key, def, 1)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

// clockEnv reads an "HH:MM" value as an offset from midnight.
func clockEnv(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

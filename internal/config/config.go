package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the dispatch API
// process. Values are primarily loaded from environment variables with
// sane defaults so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	// dispatch behavior
	LocationStaleness time.Duration
	OfferTimeout      time.Duration
	MonitorInterval   time.Duration
	MatchMetric       string // haversine or planar

	// fare tariff (RWF)
	FarePerKm          float64
	CancelBaseFare     float64
	CancelRatePerKm    float64
	PickupLossFraction float64

	// collaborators
	NotifyRetention time.Duration
	SweepInterval   time.Duration
	FCMEndpoint     string
	FCMKey          string
	MomoEndpoint    string
	MomoAPIKey      string
	PaymentCurrency string
	RouteEndpoint   string
	RouteCacheTTL   time.Duration

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,

		RedisGeoKey: "drivers_geo",
		KafkaTopic:  "driver-locations",

		LocationStaleness: 2 * time.Minute,
		OfferTimeout:      90 * time.Second,
		MonitorInterval:   15 * time.Second,
		MatchMetric:       "haversine",

		FarePerKm:          500,
		CancelBaseFare:     500,
		CancelRatePerKm:    300,
		PickupLossFraction: 0.15,

		NotifyRetention: 24 * time.Hour,
		SweepInterval:   time.Hour,
		PaymentCurrency: "rwf",
		RouteCacheTTL:   5 * time.Minute,

		LogLevel: "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setDurationFromEnv(&cfg.LocationStaleness, "LOCATION_STALENESS", &errs)
	setDurationFromEnv(&cfg.OfferTimeout, "OFFER_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.MonitorInterval, "MONITOR_INTERVAL", &errs)
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("MATCH_METRIC"))); v != "" {
		cfg.MatchMetric = v
	}

	setFloatFromEnv(&cfg.FarePerKm, "FARE_PER_KM", &errs)
	setFloatFromEnv(&cfg.CancelBaseFare, "CANCEL_BASE_FARE", &errs)
	setFloatFromEnv(&cfg.CancelRatePerKm, "CANCEL_RATE_PER_KM", &errs)
	setFloatFromEnv(&cfg.PickupLossFraction, "PICKUP_LOSS_FRACTION", &errs)

	setDurationFromEnv(&cfg.NotifyRetention, "NOTIFY_RETENTION", &errs)
	setDurationFromEnv(&cfg.SweepInterval, "NOTIFY_SWEEP_INTERVAL", &errs)
	setStringFromEnv(&cfg.FCMEndpoint, "FCM_ENDPOINT")
	cfg.FCMKey = os.Getenv("FCM_KEY")
	setStringFromEnv(&cfg.MomoEndpoint, "MOMO_ENDPOINT")
	cfg.MomoAPIKey = os.Getenv("MOMO_API_KEY")
	setStringFromEnv(&cfg.PaymentCurrency, "PAYMENT_CURRENCY")
	setStringFromEnv(&cfg.RouteEndpoint, "ROUTE_ENDPOINT")
	setDurationFromEnv(&cfg.RouteCacheTTL, "ROUTE_CACHE_TTL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MatchMetric != "haversine" && cfg.MatchMetric != "planar" {
		errs = append(errs, fmt.Errorf("MATCH_METRIC must be haversine or planar"))
	}
	if cfg.FarePerKm <= 0 {
		errs = append(errs, fmt.Errorf("FARE_PER_KM must be > 0"))
	}
	if cfg.PickupLossFraction < 0 || cfg.PickupLossFraction > 1 {
		errs = append(errs, fmt.Errorf("PICKUP_LOSS_FRACTION must be within [0,1]"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

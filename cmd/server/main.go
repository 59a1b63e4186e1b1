package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/trip-dispatch/internal/config"
	"github.com/example/trip-dispatch/internal/fare"
	"github.com/example/trip-dispatch/internal/geo"
	httpapi "github.com/example/trip-dispatch/internal/http"
	"github.com/example/trip-dispatch/internal/ingest"
	"github.com/example/trip-dispatch/internal/logging"
	"github.com/example/trip-dispatch/internal/matcher"
	"github.com/example/trip-dispatch/internal/notify"
	"github.com/example/trip-dispatch/internal/payments"
	"github.com/example/trip-dispatch/internal/registry"
	"github.com/example/trip-dispatch/internal/route"
	"github.com/example/trip-dispatch/internal/storage"
	"github.com/example/trip-dispatch/internal/trip"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("dispatch-api", "info").Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger("dispatch-api", cfg.LogLevel)

	var reg registry.Registry
	if cfg.RedisAddr != "" {
		reg = registry.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey, cfg.LocationStaleness)
		logger.Info("driver registry backend", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		reg = registry.NewMemory(cfg.LocationStaleness)
		logger.Info("driver registry backend", "backend", "memory")
	}

	var store storage.TripStore
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			if err := runMigrations(cfg.PGDSN); err != nil {
				logger.Error("migrations failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		store = pg
		logger.Info("trip store backend", "backend", "postgres")
	} else {
		store = storage.NewMemoryStore()
		logger.Info("trip store backend", "backend", "memory")
	}

	metric := geo.MetricHaversine
	if cfg.MatchMetric == "planar" {
		metric = geo.MetricPlanar
	}

	wsreg := notify.NewWSRegistry()
	pushers := []notify.Pusher{wsreg}
	if cfg.FCMEndpoint != "" {
		pushers = append(pushers, notify.NewFCMPusher(cfg.FCMEndpoint, cfg.FCMKey))
	}
	notifs := notify.NewService(logger, cfg.NotifyRetention, pushers...)

	var routes *route.Estimator
	if cfg.RouteEndpoint != "" {
		routes = &route.Estimator{
			Client: route.NewOSRMClient(cfg.RouteEndpoint),
			Cache:  route.NewCache(cfg.RouteCacheTTL),
		}
	}

	pay := &payments.Router{}
	if cfg.MomoEndpoint != "" {
		pay.Momo = payments.NewMomoClient(cfg.MomoEndpoint, cfg.MomoAPIKey)
	}
	if os.Getenv("STRIPE_API_KEY") != "" {
		pay.Card = payments.NewStripeClient(cfg.PaymentCurrency)
	}

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	trips := &trip.Service{
		Store:    store,
		Registry: reg,
		Matcher:  matcher.New(reg, metric),
		Relay:    notifs,
		Fare: fare.New(fare.Rates{
			PerKm:              cfg.FarePerKm,
			CancelBase:         cfg.CancelBaseFare,
			CancelPerKm:        cfg.CancelRatePerKm,
			PickupLossFraction: cfg.PickupLossFraction,
		}),
		Routes:       routes,
		Payments:     pay,
		Logger:       logger,
		OfferTimeout: cfg.OfferTimeout,
	}

	api := httpapi.NewServer(logger, reg, trips, notifs, wsreg, producer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go trips.RunOfferTimeoutMonitor(ctx, cfg.MonitorInterval)
	go notifs.RunSweeper(ctx, cfg.SweepInterval)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("dispatch api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_trips.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

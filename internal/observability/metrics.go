package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TripsRequested  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "trips_requested_total", Help: "Total trip requests received"})
	TripsCreated    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "trips_created_total", Help: "Total trips created with an assigned driver"})
	NoDriverTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "no_driver_total", Help: "Trip requests that found no eligible driver"})
	OffersAccepted  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "offers_accepted_total", Help: "Dispatch offers accepted by drivers"})
	OffersRejected  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "offers_rejected_total", Help: "Dispatch offers rejected by drivers"})
	OffersTimedOut  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "offers_timed_out_total", Help: "Dispatch offers auto-rejected after the response timeout"})
	TripsCompleted  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "trips_completed_total", Help: "Trips completed"})
	TripsCancelled  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "trips_cancelled_total", Help: "Trips cancelled"})
	ConflictsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "conflicts_total", Help: "Mutations rejected by the atomic precondition"})
	MatchLatency    = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "trip_dispatch", Name: "match_latency_seconds", Help: "Dispatch match latency seconds"})
	DriversOnline   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "trip_dispatch", Name: "drivers_online", Help: "Drivers with a fresh location report"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trip_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

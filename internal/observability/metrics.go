package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "naijago", Name: "searches_total", Help: "Total booking searches by service and outcome"},
		[]string{"service", "outcome"},
	)
	BookingsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "naijago", Name: "bookings_active", Help: "Currently active rides and couriers"})
	BookingsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "naijago", Name: "bookings_completed_total", Help: "Completed services by kind"},
		[]string{"service"},
	)
	ProviderRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "naijago",
		Name:      "provider_request_duration_seconds",
		Help:      "Options provider request latency",
		Buckets:   prometheus.DefBuckets,
	})
	DriverRequestsGenerated = promauto.NewCounter(prometheus.CounterOpts{Namespace: "naijago", Name: "driver_requests_generated_total", Help: "Synthetic ride requests generated for online drivers"})
	DriverRequestsAccepted  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "naijago", Name: "driver_requests_accepted_total", Help: "Synthetic ride requests accepted by drivers"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "naijago", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "naijago",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

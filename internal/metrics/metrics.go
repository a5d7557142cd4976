// Package metrics holds the Prometheus collectors for the redirect pipeline.
// Collectors register with the default registry on package load.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkshield_http_requests_total",
			Help: "Total HTTP requests by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkshield_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkshield_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	// Redirects
	RedirectOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkshield_redirect_outcomes_total",
			Help: "Redirect results by outcome (redirected, not_found, expired, disabled, exhausted, unsafe, error)",
		},
		[]string{"outcome"},
	)

	// Safety
	SafetyChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkshield_safety_checks_total",
			Help: "Threat classifier calls by result (safe, unsafe, fail_open, fail_closed)",
		},
		[]string{"result"},
	)

	SafetyCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkshield_safety_check_duration_seconds",
			Help:    "Threat classifier call latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	SafetyCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkshield_safety_cache_lookups_total",
			Help: "Cached verdict lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	// Geolocation
	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkshield_geo_lookups_total",
			Help: "Geolocation lookups by result (success, local, fallback)",
		},
		[]string{"result"},
	)

	GeoLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkshield_geo_lookup_duration_seconds",
			Help:    "Geolocation API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	// Tracking
	ClicksTracked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkshield_clicks_tracked_total",
			Help: "Clicks persisted together with their aggregate update",
		},
	)

	TrackingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkshield_tracking_failures_total",
			Help: "Tracking failures swallowed by the redirect path, by stage",
		},
		[]string{"stage"},
	)

	TrackingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkshield_tracking_queue_depth",
			Help: "Jobs waiting in the async tracking queue",
		},
	)

	TrackingDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkshield_tracking_dropped_total",
			Help: "Tracking jobs dropped because the queue was full or closed",
		},
	)

	LinksAutoDisabled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkshield_links_auto_disabled_total",
			Help: "Anonymous links disabled after reaching the click threshold",
		},
	)

	LinksModerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkshield_links_moderated_total",
			Help: "Admin status changes by target status",
		},
		[]string{"status"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkshield_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkshield_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkshield_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one finished request. route is the ServeMux pattern,
// never the raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

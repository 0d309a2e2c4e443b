package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	elevationLookups    *prometheus.CounterVec
	elevationDuration   prometheus.Histogram
	debounceCancels     prometheus.Counter
	staleResponses      prometheus.Counter
	entitiesCreated     *prometheus.CounterVec
}

// New creates a fresh Metrics registry with gateway and map metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parahub",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by the client gateway",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "parahub",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by the client gateway",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	elevationLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parahub",
		Name:      "elevation_lookups_total",
		Help:      "Elevation lookups issued, labeled by outcome",
	}, []string{"outcome"})

	elevationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "parahub",
		Name:      "elevation_lookup_duration_seconds",
		Help:      "Duration of elevation lookups from dispatch to resolution",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	debounceCancels := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parahub",
		Name:      "elevation_debounce_cancels_total",
		Help:      "Pending elevation timers replaced by a newer cursor position",
	})

	staleResponses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parahub",
		Name:      "elevation_stale_responses_total",
		Help:      "Elevation responses discarded because a newer lookup superseded them",
	})

	entitiesCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parahub",
		Name:      "entities_created_total",
		Help:      "Spots and terrain points created through this client",
	}, []string{"kind"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		elevationLookups,
		elevationDuration,
		debounceCancels,
		staleResponses,
		entitiesCreated,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		elevationLookups:    elevationLookups,
		elevationDuration:   elevationDuration,
		debounceCancels:     debounceCancels,
		staleResponses:      staleResponses,
		entitiesCreated:     entitiesCreated,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveElevationLookup records one resolved lookup. Outcome is one of
// "ok", "timeout", "error".
func (m *Metrics) ObserveElevationLookup(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.elevationLookups.With(prometheus.Labels{"outcome": outcome}).Inc()
	m.elevationDuration.Observe(duration.Seconds())
}

// IncDebounceCancel counts a pending debounce timer replaced before firing.
func (m *Metrics) IncDebounceCancel() {
	if m == nil {
		return
	}
	m.debounceCancels.Inc()
}

// IncStaleResponse counts an elevation response thrown away because its
// correlation token no longer matched the latest issued lookup.
func (m *Metrics) IncStaleResponse() {
	if m == nil {
		return
	}
	m.staleResponses.Inc()
}

// IncEntityCreated counts a created entity; kind is "spot" or "terrain_point".
func (m *Metrics) IncEntityCreated(kind string) {
	if m == nil {
		return
	}
	m.entitiesCreated.With(prometheus.Labels{"kind": kind}).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

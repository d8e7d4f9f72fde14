package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const unknownLabel = "unknown"

// Set bundles the collectors the API exports on /metrics.
type Set struct {
	Cache     *CacheMetrics
	Inventory *InventoryMetrics
	HTTP      *HTTPMetrics
}

// New registers every collector on reg. A nil registerer yields no-op collectors.
func New(reg prometheus.Registerer) *Set {
	return &Set{
		Cache:     NewCacheMetrics(reg),
		Inventory: NewInventoryMetrics(reg),
		HTTP:      NewHTTPMetrics(reg),
	}
}

// CacheMetrics tracks read-through cache lookups and invalidations.
type CacheMetrics struct {
	requests      *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewCacheMetrics registers the cache metrics on the provided registerer.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		return &CacheMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Cache lookups by outcome (hit, miss, error).",
	}, []string{"cache", "result"})
	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_invalidations_total",
		Help: "Keys removed by cache invalidation.",
	}, []string{"cache"})
	reg.MustRegister(requests, invalidations)
	return &CacheMetrics{requests: requests, invalidations: invalidations}
}

// Hit records a cache hit.
func (c *CacheMetrics) Hit(cache string) { c.inc(cache, "hit") }

// Miss records a cache miss.
func (c *CacheMetrics) Miss(cache string) { c.inc(cache, "miss") }

// Error records a failed cache call.
func (c *CacheMetrics) Error(cache string) { c.inc(cache, "error") }

// Invalidated adds the number of keys removed for cache.
func (c *CacheMetrics) Invalidated(cache string, keys int64) {
	if c == nil || c.invalidations == nil || keys <= 0 {
		return
	}
	c.invalidations.WithLabelValues(normalizeLabel(cache)).Add(float64(keys))
}

func (c *CacheMetrics) inc(cache, result string) {
	if c == nil || c.requests == nil {
		return
	}
	c.requests.WithLabelValues(normalizeLabel(cache), result).Inc()
}

// InventoryMetrics counts stock adjustments.
type InventoryMetrics struct {
	adjustments *prometheus.CounterVec
	units       *prometheus.CounterVec
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_total",
		Help: "Stock reserve/release attempts by outcome.",
	}, []string{"op", "outcome"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_units_total",
		Help: "Units moved by successful reserve/release calls.",
	}, []string{"op"})
	reg.MustRegister(adjustments, units)
	return &InventoryMetrics{adjustments: adjustments, units: units}
}

// Observe records one adjustment attempt; units only count on success.
func (m *InventoryMetrics) Observe(op, outcome string, units int) {
	if m == nil || m.adjustments == nil {
		return
	}
	m.adjustments.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
	if outcome == "ok" && units > 0 {
		m.units.WithLabelValues(normalizeLabel(op)).Add(float64(units))
	}
}

// HTTPMetrics tracks request counts and latency per route pattern.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP metrics on the provided registerer.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route pattern, and status.",
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(requests, duration)
	return &HTTPMetrics{requests: requests, duration: duration}
}

// Observe records one completed request.
func (h *HTTPMetrics) Observe(method, route string, status int, elapsed time.Duration) {
	if h == nil || h.requests == nil {
		return
	}
	route = normalizeLabel(route)
	h.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	h.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return unknownLabel
	}
	return v
}

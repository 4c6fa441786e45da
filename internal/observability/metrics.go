// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Every method
// is safe to call on a nil *Collector, which records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	GuildsCreated prometheus.Counter
	Memberships   *prometheus.CounterVec
	PostsCreated  prometheus.Counter
	PostsDeleted  prometheus.Counter
	LikeToggles   *prometheus.CounterVec
	PinToggles    *prometheus.CounterVec

	// Counter consistency
	CounterDrift   *prometheus.CounterVec
	CounterRepairs *prometheus.CounterVec

	StoreErrors *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	RateLimited prometheus.Counter
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		GuildsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guilds_created_total",
			Help:      "Total number of guilds created",
		}),
		Memberships: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "membership_changes_total",
			Help:      "Membership rows created or removed",
		}, []string{"action"}),
		PostsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_created_total",
			Help:      "Total number of posts created",
		}),
		PostsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_deleted_total",
			Help:      "Total number of posts deleted",
		}),
		LikeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_toggles_total",
			Help:      "Like toggles by resulting state",
		}, []string{"liked"}),
		PinToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pin_toggles_total",
			Help:      "Pin toggles by outcome",
		}, []string{"outcome"}),
		CounterDrift: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_drift_suspected_total",
			Help:      "Counter adjustments that failed after their row write succeeded",
		}, []string{"counter", "reason"}),
		CounterRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_repairs_total",
			Help:      "Counters rewritten by reconciliation",
		}, []string{"counter"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store failures by error type",
		}, []string{"type"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.GuildsCreated,
		c.Memberships,
		c.PostsCreated,
		c.PostsDeleted,
		c.LikeToggles,
		c.PinToggles,
		c.CounterDrift,
		c.CounterRepairs,
		c.StoreErrors,
		c.CacheHits,
		c.CacheMisses,
		c.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordGuildCreated() {
	if c != nil {
		c.GuildsCreated.Inc()
	}
}

// RecordMembership counts a membership row change; action is "join" or "leave".
func (c *Collector) RecordMembership(action string) {
	if c != nil {
		c.Memberships.WithLabelValues(action).Inc()
	}
}

func (c *Collector) RecordPostCreated() {
	if c != nil {
		c.PostsCreated.Inc()
	}
}

func (c *Collector) RecordPostDeleted() {
	if c != nil {
		c.PostsDeleted.Inc()
	}
}

func (c *Collector) RecordLikeToggle(liked bool) {
	if c != nil {
		c.LikeToggles.WithLabelValues(strconv.FormatBool(liked)).Inc()
	}
}

func (c *Collector) RecordPinToggle(outcome string) {
	if c != nil {
		c.PinToggles.WithLabelValues(outcome).Inc()
	}
}

// RecordCounterDrift notes a counter that may no longer match its rows.
func (c *Collector) RecordCounterDrift(counter, reason string) {
	if c != nil {
		c.CounterDrift.WithLabelValues(counter, reason).Inc()
	}
}

func (c *Collector) RecordCounterRepair(counter string) {
	if c != nil {
		c.CounterRepairs.WithLabelValues(counter).Inc()
	}
}

func (c *Collector) RecordStoreError(errorType string) {
	if c != nil {
		c.StoreErrors.WithLabelValues(errorType).Inc()
	}
}

func (c *Collector) RecordCacheHit() {
	if c != nil {
		c.CacheHits.Inc()
	}
}

func (c *Collector) RecordCacheMiss() {
	if c != nil {
		c.CacheMisses.Inc()
	}
}

func (c *Collector) RecordRateLimited() {
	if c != nil {
		c.RateLimited.Inc()
	}
}

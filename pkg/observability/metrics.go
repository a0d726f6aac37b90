package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	PermissionChecksTotal  *prometheus.CounterVec
	PermissionDenialsTotal *prometheus.CounterVec
	RoleChangesTotal       *prometheus.CounterVec
	LeadershipTransfers    prometheus.Counter

	// Moderation metrics
	ModerationActionsTotal *prometheus.CounterVec
	BansIssuedTotal        *prometheus.CounterVec
	BansLiftedTotal        prometheus.Counter
	BanDenialsTotal        *prometheus.CounterVec

	// Snapshot cache metrics
	SnapshotCacheHitsTotal   prometheus.Counter
	SnapshotCacheMissesTotal prometheus.Counter
	SnapshotInvalidations    prometheus.Counter
	SnapshotLoadDuration     prometheus.Histogram

	// User lock metrics
	UserLockWaitDuration prometheus.Histogram

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharesphere_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sharesphere_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharesphere_permission_checks_total",
				Help: "Total number of effective permission checks",
			},
			[]string{"operation", "result"},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharesphere_permission_denials_total",
				Help: "Total number of operations denied for insufficient privileges",
			},
			[]string{"operation"},
		),
		RoleChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharesphere_role_changes_total",
				Help: "Total number of committed sphere role changes",
			},
			[]string{"level"},
		),
		LeadershipTransfers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sharesphere_leadership_transfers_total",
				Help: "Total number of committed leadership successions",
			},
		),

		ModerationActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharesphere_moderation_actions_total",
				Help: "Total number of post/comment moderation writes",
			},
			[]string{"target"},
		),
		BansIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharesphere_bans_issued_total",
				Help: "Total number of bans created",
			},
			[]string{"kind"},
		),
		BansLiftedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sharesphere_bans_lifted_total",
				Help: "Total number of bans soft-deleted",
			},
		),
		BanDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharesphere_ban_denials_total",
				Help: "Total number of content creations rejected by an active ban",
			},
			[]string{"kind"},
		),

		SnapshotCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sharesphere_snapshot_cache_hits_total",
				Help: "Total number of user snapshot cache hits",
			},
		),
		SnapshotCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sharesphere_snapshot_cache_misses_total",
				Help: "Total number of user snapshot cache misses",
			},
		),
		SnapshotInvalidations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sharesphere_snapshot_invalidations_total",
				Help: "Total number of user snapshot invalidations",
			},
		),
		SnapshotLoadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sharesphere_snapshot_load_duration_seconds",
				Help:    "Duration of user snapshot rebuilds from the role store",
				Buckets: prometheus.DefBuckets,
			},
		),

		UserLockWaitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sharesphere_user_lock_wait_duration_seconds",
				Help:    "Time spent waiting on the per-user coordination lock",
				Buckets: prometheus.DefBuckets,
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sharesphere_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sharesphere_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.PermissionDenialsTotal,
		m.RoleChangesTotal,
		m.LeadershipTransfers,
		m.ModerationActionsTotal,
		m.BansIssuedTotal,
		m.BansLiftedTotal,
		m.BanDenialsTotal,
		m.SnapshotCacheHitsTotal,
		m.SnapshotCacheMissesTotal,
		m.SnapshotInvalidations,
		m.SnapshotLoadDuration,
		m.UserLockWaitDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// MetricsHandler returns the HTTP handler serving the registry.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status for the HTTP metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware records request counts and latency per method and path.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

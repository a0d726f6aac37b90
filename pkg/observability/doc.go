// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown for the ShareSphere services.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("sphere", "gardening").Info("role granted")
//
// Loggers travel on the request context; handlers recover them with
// observability.FromContext(ctx), which also stamps the request id and
// acting user id when present.
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.PermissionDenialsTotal.WithLabelValues("set_sphere_role").Inc()
//	metrics.SnapshotCacheHitsTotal.Inc()
//
// Counters and histograms cover HTTP traffic, permission checks and
// denials, role changes, bans, moderation actions, and the user snapshot
// cache. Serve them with MetricsHandler.
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	mux.HandleFunc("/health/ready", checker.Readiness)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/httputil: request logging and request-id middleware
package observability

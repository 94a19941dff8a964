// Package health provides HTTP handlers for process health monitoring.
//
// Handlers:
//   - Liveness: process is running (no dependency checks)
//   - Readiness: all dependencies answer
//   - NoContent: returns 204 for minimal overhead
//
// Usage:
//
//	mux := http.NewServeMux()
//	mux.Handle("GET /health/live", health.Liveness())
//	mux.Handle("GET /health/ready", health.Readiness(log, 2*time.Second,
//		pg.Healthcheck(pool),
//		redis.Healthcheck(client),
//	))
//	mux.Handle("GET /ping", health.NoContent())
//
// Checks follow the func(context.Context) error signature used by every
// integration package's Healthcheck.
package health

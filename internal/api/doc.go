// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the latest progress of every element in the most
//     recent run, served from the probe Tracker, and /v1/progress/{element}
//     for a single element.
//   - GET /v1/runs and /v1/runs/{run_id}/elements for run history via the
//     ProgressRepository interface.
package api

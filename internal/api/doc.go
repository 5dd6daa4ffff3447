// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawl/start, /pause, /stop and GET /v1/crawl/status to drive
//     the crawler.
//   - GET/DELETE /v1/crawl/checkpoint to inspect or discard resumable state.
//   - GET /v1/materials, /v1/manufacturers, /v1/material-types to browse the
//     catalogue.
//   - GET /v1/sessions and /v1/sessions/{session_id} for crawl history via the
//     SessionRepository interface.
package api

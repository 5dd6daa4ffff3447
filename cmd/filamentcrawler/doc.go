// Package main hosts the filament catalogue crawler entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, crawl control
//     (start/pause/stop/status), checkpoint inspection and read-only catalogue
//     browsing.
//   - Controller: internal/dispatcher.Controller owns at most one crawl at a
//     time and forwards pause/stop commands to it over a buffered channel.
//   - Driver: internal/worker.Driver discovers item keys on the infinite-scroll
//     list page (internal/discovery), then fetches, extracts and merge-upserts
//     each item. Pausing persists {keys, cursor} to the checkpoint store so the
//     next run resumes exactly where it left off.
//   - Rendering: renderer.kind selects chromedp (headless Chrome, required for
//     the JavaScript-driven list page) or colly (plain HTTP with pagination).
//   - Persistence: records and session history live in memory or Postgres;
//     the checkpoint lives in a local file, GCS or Redis. Record updates are
//     optionally announced on Pub/Sub or a Redis stream.
//   - Observability: zap logs, Prometheus metrics on /metrics and a progress
//     Hub that batches crawl events for log, metric and session sinks.
//
// Quick checklist:
//   - Configure env vars: FILAMENT_SOURCE_LIST_URL, FILAMENT_RENDERER_KIND,
//     FILAMENT_STORAGE_RECORDS=postgres with FILAMENT_DB_DSN, and
//     FILAMENT_STORAGE_CHECKPOINT for the checkpoint backend.
//   - Serve the API: go run ./cmd/filamentcrawler -config config.yaml
//   - One-shot crawl: go run ./cmd/filamentcrawler -once [-full-refresh] [-resume]
//     (Ctrl-C pauses and saves a checkpoint).
package main

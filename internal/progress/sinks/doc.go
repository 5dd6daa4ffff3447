// Package sinks holds the progress consumers wired into the crawler: a
// Prometheus exporter, the crawl session history store and a zap logger.
package sinks

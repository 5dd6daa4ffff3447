// Package metrics exposes Prometheus collectors for the HTTP API, the fetch
// pacer and record notifications. Crawl progress metrics live in
// progress/sinks.
package metrics

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	pacerDelaySeconds          *prometheus.HistogramVec
	notificationsTotal         *prometheus.CounterVec

	once sync.Once
)

const namespace = "catalog"

// Init registers the collectors with the default registry once.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "API requests served, labeled by method and status code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API latency, labeled by method and chi route pattern.",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 1, 5},
			},
			[]string{"method", "route"},
		)

		pacerDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    namespace + "_pacer_delay_seconds",
				Help:    "Histogram of waits imposed between item fetches, labeled by host.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Record-updated notifications published, labeled by result.",
			},
			[]string{"result"},
		)
	})
}

// HostLabel reduces a URL or bare host to a lowercase hostname suitable for
// a label value, or "unknown".
func HostLabel(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest records one served API request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePacerDelay records how long the pacer held back a fetch to host.
func ObservePacerDelay(host string, waited time.Duration) {
	pacerDelaySeconds.WithLabelValues(HostLabel(host)).Observe(waited.Seconds())
}

// InstrumentNotifier counts successful and failed publishes made through n.
func InstrumentNotifier(n catalog.Notifier) catalog.Notifier {
	Init()
	return &countingNotifier{next: n}
}

type countingNotifier struct {
	next catalog.Notifier
}

func (c *countingNotifier) Publish(ctx context.Context, rec catalog.MaterialRecord) error {
	if err := c.next.Publish(ctx, rec); err != nil {
		notificationsTotal.WithLabelValues("error").Inc()
		return err
	}
	notificationsTotal.WithLabelValues("ok").Inc()
	return nil
}

func (c *countingNotifier) Close() error {
	return c.next.Close()
}

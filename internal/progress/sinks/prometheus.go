package sinks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/filament-catalog/internal/progress"
)

// PrometheusSink exports crawl progress metrics via Prometheus. It owns all
// collectors for sessions started/finished/running and per-item outcomes.
type PrometheusSink struct {
	sessionsStarted  prometheus.Counter
	sessionsFinished *prometheus.CounterVec
	sessionsRunning  prometheus.Gauge
	sessionRuntime   *prometheus.HistogramVec

	items         *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	discovered    prometheus.Gauge
	cursor        prometheus.Gauge

	tracker *sessionTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_crawl_sessions_started_total",
			Help: "Total crawl sessions that have started.",
		}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_crawl_sessions_finished_total",
			Help: "Total crawl sessions finished partitioned by result.",
		}, []string{"result"}),
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_crawl_sessions_running",
			Help: "Current number of running crawl sessions.",
		}),
		sessionRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_crawl_session_runtime_seconds",
			Help:    "Wall time per finished crawl session.",
			Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"result"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_crawl_items_total",
			Help: "Items processed partitioned by outcome (fetched, skipped, failed).",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_crawl_item_fetch_duration_seconds",
			Help:    "Time spent fetching, extracting and storing one item.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		discovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_crawl_discovered_items",
			Help: "Item keys found by the most recent discovery poll.",
		}),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_crawl_cursor",
			Help: "Index of the next item the running crawl will process.",
		}),
		tracker: newSessionTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsFinished,
		s.sessionsRunning,
		s.sessionRuntime,
		s.items,
		s.fetchDuration,
		s.discovered,
		s.cursor,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageCrawlStart:
		s.sessionsStarted.Inc()
		if s.tracker.start(evt.SessionID) {
			s.sessionsRunning.Inc()
		}
	case progress.StageDiscoveryPoll:
		s.discovered.Set(float64(evt.Current))
	case progress.StageItemFetched, progress.StageItemSkipped, progress.StageItemFailed:
		s.handleItemEvent(evt)
	case progress.StageCrawlDone, progress.StageCrawlPaused, progress.StageCrawlStopped, progress.StageCrawlFailed:
		s.handleTerminalEvent(evt)
	}
}

func (s *PrometheusSink) handleItemEvent(evt progress.Event) {
	outcome := strings.ToLower(strings.TrimPrefix(string(evt.Stage), "ITEM_"))
	s.items.WithLabelValues(outcome).Inc()
	s.cursor.Set(float64(evt.Current))
	if evt.Stage == progress.StageItemFetched && evt.Dur > 0 {
		s.fetchDuration.Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleTerminalEvent(evt progress.Event) {
	result := strings.ToLower(strings.TrimPrefix(string(evt.Stage), "CRAWL_"))
	s.sessionsFinished.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.sessionRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.SessionID) {
		s.sessionsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type sessionTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{running: make(map[[16]byte]struct{})}
}

func (t *sessionTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *sessionTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

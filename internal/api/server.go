package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/config"
	"github.com/JakeFAU/filament-catalog/internal/dispatcher"
	"github.com/JakeFAU/filament-catalog/internal/metrics"
	"github.com/JakeFAU/filament-catalog/internal/store"
	"github.com/JakeFAU/filament-catalog/internal/worker"
)

// Crawler is the crawl control surface. *dispatcher.Controller satisfies it.
type Crawler interface {
	Start(ctx context.Context, opts worker.Options) (uuid.UUID, error)
	StartFromCheckpoint(ctx context.Context, fullRefresh bool) (uuid.UUID, error)
	Pause() error
	Stop() error
	Status() dispatcher.Status
}

// RecordReader serves single-record lookups and catalogue browsing.
type RecordReader interface {
	Get(ctx context.Context, key string) (catalog.MaterialRecord, error)
	catalog.RecordBrowser
}

// Deps bundles the collaborators behind the HTTP handlers. Sessions and
// Metrics are optional.
type Deps struct {
	Crawl       Crawler
	Records     RecordReader
	Checkpoints catalog.CheckpointStore
	Sessions    store.SessionRepository
	Metrics     http.Handler
}

// Server wires HTTP handlers to the crawl controller and stores.
type Server struct {
	router   chi.Router
	deps     Deps
	sessions *SessionHandler
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Handler()
	}
	s := &Server{
		deps:     deps,
		sessions: NewSessionHandler(deps.Sessions, logger),
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", deps.Metrics)

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/crawl", func(r chi.Router) {
			r.Post("/start", s.startCrawl)
			r.Post("/pause", s.pauseCrawl)
			r.Post("/stop", s.stopCrawl)
			r.Get("/status", s.crawlStatus)
			r.Get("/checkpoint", s.getCheckpoint)
			r.Delete("/checkpoint", s.deleteCheckpoint)
		})
		r.Get("/materials", s.listMaterials)
		r.Get("/manufacturers", s.listManufacturers)
		r.Get("/material-types", s.listMaterialTypes)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.sessions.ListSessions)
			r.Get("/{session_id}", s.sessions.GetSession)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Crawl == nil || s.deps.Records == nil || s.deps.Checkpoints == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

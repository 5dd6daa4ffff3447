package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/dispatcher"
	"github.com/JakeFAU/filament-catalog/internal/worker"
)

type startRequest struct {
	FullRefresh *bool `json:"full_refresh"`
	Resume      bool  `json:"resume"`
}

type checkpointDTO struct {
	Exists    bool       `json:"exists"`
	Cursor    int        `json:"cursor,omitempty"`
	Total     int        `json:"total,omitempty"`
	Remaining int        `json:"remaining,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// startCrawl handles POST /v1/crawl/start. It returns 202 with the session
// id, 409 when a crawl is already running, or 404 when resume is requested
// without a stored checkpoint.
func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	fullRefresh := boolOrDefault(req.FullRefresh, s.cfg.Crawl.FullRefreshDefault)

	start := func() (string, error) {
		if req.Resume {
			id, err := s.deps.Crawl.StartFromCheckpoint(r.Context(), fullRefresh)
			return id.String(), err
		}
		id, err := s.deps.Crawl.Start(r.Context(), worker.Options{FullRefresh: fullRefresh})
		return id.String(), err
	}
	id, err := start()
	switch {
	case errors.Is(err, catalog.ErrCrawlRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, catalog.ErrNoCheckpoint):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error("start crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start crawl")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id":   id,
		"full_refresh": fullRefresh,
		"resume":       req.Resume,
	})
}

func (s *Server) pauseCrawl(w http.ResponseWriter, _ *http.Request) {
	s.command(w, s.deps.Crawl.Pause)
}

func (s *Server) stopCrawl(w http.ResponseWriter, _ *http.Request) {
	s.command(w, s.deps.Crawl.Stop)
}

func (s *Server) command(w http.ResponseWriter, send func() error) {
	if err := send(); err != nil {
		if errors.Is(err, catalog.ErrNoCrawlRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("crawl command failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to deliver command")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": string(s.deps.Crawl.Status().State)})
}

func (s *Server) crawlStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Crawl.Status())
}

// getCheckpoint handles GET /v1/crawl/checkpoint and reports whether a
// resumable session exists.
func (s *Server) getCheckpoint(w http.ResponseWriter, r *http.Request) {
	cp, err := s.deps.Checkpoints.Load(r.Context())
	if err != nil {
		s.logger.Error("load checkpoint failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load checkpoint")
		return
	}
	if cp == nil {
		writeJSON(w, http.StatusOK, checkpointDTO{})
		return
	}
	created := cp.CreatedAt
	writeJSON(w, http.StatusOK, checkpointDTO{
		Exists:    true,
		Cursor:    cp.Cursor,
		Total:     len(cp.Keys),
		Remaining: cp.Remaining(),
		CreatedAt: &created,
	})
}

// deleteCheckpoint handles DELETE /v1/crawl/checkpoint. It refuses with 409
// while a crawl is active since the crawl may write a new checkpoint.
func (s *Server) deleteCheckpoint(w http.ResponseWriter, r *http.Request) {
	if s.deps.Crawl.Status().State != dispatcher.StateIdle {
		writeError(w, http.StatusConflict, catalog.ErrCrawlRunning.Error())
		return
	}
	if err := s.deps.Checkpoints.Clear(r.Context()); err != nil {
		s.logger.Error("clear checkpoint failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear checkpoint")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func boolOrDefault(ptr *bool, def bool) bool {
	if ptr == nil {
		return def
	}
	return *ptr
}

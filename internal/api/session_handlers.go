package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/store"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
	sessionTimeout      = 3 * time.Second
)

// SessionHandler exposes read-only crawl history endpoints.
type SessionHandler struct {
	repo    store.SessionRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewSessionHandler wires the repository and logger.
func NewSessionHandler(repo store.SessionRepository, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		repo:    repo,
		timeout: sessionTimeout,
		logger:  logger,
	}
}

// ListSessions handles GET /v1/sessions?status=&limit=&offset=. It returns a
// JSON object {"sessions": [...]} on success, 400 for invalid filters, 503
// when the repo is unavailable, or 500 if the repository call fails.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "session repository unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, offset, err := parseLimitOffset(r, defaultSessionLimit, maxSessionLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *store.SessionStatus
	if statusParam := strings.TrimSpace(r.URL.Query().Get("status")); statusParam != "" {
		statusVal := store.SessionStatus(strings.ToLower(statusParam))
		if !statusVal.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		status = &statusVal
	}
	sessions, err := h.repo.ListSessions(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GetSession handles GET /v1/sessions/{session_id}. It returns
// {"session": {...}} on success, 400 for malformed IDs, 404 when the
// repository reports store.ErrNotFound, 503 if the repo is not initialized,
// or 500 otherwise.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "session repository unavailable")
		return
	}
	id, err := parseSessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.repo.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("get session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

func parseSessionID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "session_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("session_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid session_id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/config"
	"github.com/JakeFAU/filament-catalog/internal/storage/memory"
	"github.com/JakeFAU/filament-catalog/internal/store"
)

func TestSessionHandlerListSessions(t *testing.T) {
	t.Parallel()

	repo := memory.NewSessionStore()
	ctx := context.Background()
	done := uuid.New()
	require.NoError(t, repo.StartSession(ctx, done, time.Now().Add(-time.Hour)))
	require.NoError(t, repo.FinishSession(ctx, done, time.Now(), store.SessionCompleted, nil))
	require.NoError(t, repo.StartSession(ctx, uuid.New(), time.Now()))

	handler := NewSessionHandler(repo, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions?status=COMPLETED&limit=10", nil)
	rec := httptest.NewRecorder()

	handler.ListSessions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Sessions []store.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	require.Equal(t, done, body.Sessions[0].ID)
}

func TestSessionHandlerListSessionsInvalidStatus(t *testing.T) {
	t.Parallel()

	handler := NewSessionHandler(memory.NewSessionStore(), zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions?status=exploded", nil)
	rec := httptest.NewRecorder()

	handler.ListSessions(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandlerListSessionsRepoError(t *testing.T) {
	t.Parallel()

	handler := NewSessionHandler(&erroringSessionRepo{err: errors.New("db down")}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	rec := httptest.NewRecorder()

	handler.ListSessions(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSessionHandlerUnavailable(t *testing.T) {
	t.Parallel()

	handler := NewSessionHandler(nil, nil)
	rec := httptest.NewRecorder()
	handler.ListSessions(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	handler.GetSession(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/x", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionHandlerGetSession(t *testing.T) {
	t.Parallel()

	repo := memory.NewSessionStore()
	id := uuid.New()
	require.NoError(t, repo.StartSession(context.Background(), id, time.Now()))
	handler := NewSessionHandler(repo, zap.NewNop())

	req := withSessionIDParam(httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id.String(), nil), id.String())
	rec := httptest.NewRecorder()
	handler.GetSession(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), id.String())
	require.Contains(t, rec.Body.String(), `"status":"running"`)
}

func TestSessionHandlerGetSessionNotFound(t *testing.T) {
	t.Parallel()

	handler := NewSessionHandler(memory.NewSessionStore(), zap.NewNop())
	id := uuid.New()
	req := withSessionIDParam(httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id.String(), nil), id.String())
	rec := httptest.NewRecorder()

	handler.GetSession(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandlerGetSessionInvalidID(t *testing.T) {
	t.Parallel()

	handler := NewSessionHandler(memory.NewSessionStore(), zap.NewNop())
	req := withSessionIDParam(httptest.NewRequest(http.MethodGet, "/v1/sessions/nope", nil), "nope")
	rec := httptest.NewRecorder()

	handler.GetSession(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionRoutesMounted(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t, config.Config{})
	rec := fx.do(http.MethodGet, "/v1/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"sessions":[]}`, rec.Body.String())
}

func withSessionIDParam(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("session_id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type erroringSessionRepo struct {
	err error
}

func (e *erroringSessionRepo) StartSession(context.Context, uuid.UUID, time.Time) error { return e.err }

func (e *erroringSessionRepo) ApplyDelta(context.Context, uuid.UUID, store.ItemDelta, time.Time) error {
	return e.err
}

func (e *erroringSessionRepo) FinishSession(context.Context, uuid.UUID, time.Time, store.SessionStatus, *string) error {
	return e.err
}

func (e *erroringSessionRepo) GetSession(context.Context, uuid.UUID) (store.Session, error) {
	return store.Session{}, e.err
}

func (e *erroringSessionRepo) ListSessions(context.Context, *store.SessionStatus, int, int) ([]store.Session, error) {
	return nil, e.err
}

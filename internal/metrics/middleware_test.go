package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByStatus(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/crawl/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/v1/crawl/pause", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200"))
	conflictBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "409"))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/crawl/status", nil),
		httptest.NewRequest(http.MethodGet, "/v1/crawl/status", nil),
		httptest.NewRequest(http.MethodPost, "/v1/crawl/pause", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.InDelta(t, okBefore+2, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200")), 0)
	require.InDelta(t, conflictBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "409")), 0)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func TestMiddlewareWithoutRouter(t *testing.T) {
	Init()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "204"))

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bare", nil))

	require.InDelta(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "204")), 0)
}

func TestRouteLabel(t *testing.T) {
	r := chi.NewRouter()
	var got string
	r.Get("/v1/sessions/{session_id}", func(_ http.ResponseWriter, req *http.Request) {
		got = routeLabel(req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sessions/abc", nil))
	require.Equal(t, "/v1/sessions/{session_id}", got)

	require.Equal(t, "unmatched", routeLabel(httptest.NewRequest(http.MethodGet, "/nowhere", nil)))
}

package static

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/library", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		switch page {
		case "", "1":
			fmt.Fprint(w, `<html><body><a href="/swatch/1">1</a><a href="/swatch/2">2</a></body></html>`)
		case "2":
			fmt.Fprint(w, `<html><body><a href="/swatch/3">3</a></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/swatch/1", func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != "filament-test" {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `<html><h1>Prusament - Galaxy Black</h1></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPage(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	b, err := New(Config{ListURL: srv.URL + "/library", UserAgent: "filament-test"}, zap.NewNop())
	require.NoError(t, err)

	html, err := b.FetchPage(context.Background(), srv.URL+"/swatch/1")
	require.NoError(t, err)
	assert.Contains(t, html, "Galaxy Black")

	// Revisiting the same URL is allowed.
	_, err = b.FetchPage(context.Background(), srv.URL+"/swatch/1")
	require.NoError(t, err)

	_, err = b.FetchPage(context.Background(), srv.URL+"/swatch/404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NoError(t, b.Close())
}

func TestFetchPageCanceled(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	b, err := New(Config{ListURL: srv.URL + "/library"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.FetchPage(ctx, srv.URL+"/swatch/1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchPageCancelAbortsRequest(t *testing.T) {
	t.Parallel()

	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(5 * time.Second):
			fmt.Fprint(w, "<html></html>")
		}
	}))
	t.Cleanup(srv.Close)

	b, err := New(Config{ListURL: srv.URL + "/library", Timeout: 10 * time.Second}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = b.FetchPage(ctx, srv.URL+"/swatch/slow")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-aborted:
	case <-time.After(3 * time.Second):
		t.Fatal("request kept running after the context ended")
	}
}

func TestListPagination(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	b, err := New(Config{ListURL: srv.URL + "/library", PageParam: "page"}, zap.NewNop())
	require.NoError(t, err)

	page, err := b.OpenList(context.Background())
	require.NoError(t, err)
	defer page.Close()

	html, err := page.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "/swatch/2")
	assert.NotContains(t, html, "/swatch/3")

	require.NoError(t, page.LoadMore(context.Background()))
	html, err = page.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "/swatch/1")
	assert.Contains(t, html, "/swatch/3")

	require.Error(t, page.LoadMore(context.Background()), "page 3 does not exist")
	assert.NoError(t, page.LoadMore(context.Background()), "exhausted list stops fetching")
}

func TestListWithoutPagination(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	b, err := New(Config{ListURL: srv.URL + "/library"}, zap.NewNop())
	require.NoError(t, err)

	page, err := b.OpenList(context.Background())
	require.NoError(t, err)
	before, err := page.HTML(context.Background())
	require.NoError(t, err)
	require.NoError(t, page.LoadMore(context.Background()))
	after, err := page.HTML(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestOpenListFailure(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	b, err := New(Config{ListURL: srv.URL + "/missing"}, zap.NewNop())
	require.NoError(t, err)
	_, err = b.OpenList(context.Background())
	assert.Error(t, err)
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	b := &Browser{cfg: Config{ListURL: "https://example.com/library?sort=name", PageParam: "page"}}
	first, err := b.pageURL(1)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/library?sort=name", first)

	third, err := b.pageURL(3)
	require.NoError(t, err)
	u, err := url.Parse(third)
	require.NoError(t, err)
	assert.Equal(t, "3", u.Query().Get("page"))
	assert.Equal(t, "name", u.Query().Get("sort"))
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	assert.Error(t, err)
	b, err := New(Config{ListURL: "https://example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, b.cfg.Timeout)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	var body string
	var fetchErr error
	hooks := &stubHooks{}
	configureCollectorHooks(hooks, &body, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{Body: []byte("<html></html>")})
	assert.Equal(t, "<html></html>", body)

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("Bad Gateway"))
	require.Error(t, fetchErr)
	assert.Contains(t, fetchErr.Error(), "status 502")
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }

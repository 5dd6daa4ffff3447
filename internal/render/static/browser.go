// Package static serves catalogue pages that render without JavaScript,
// fetching them with gocolly.
package static

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	ListURL string
	// PageParam names the query parameter used for list pagination, for
	// example "page". When empty LoadMore re-reads the same list.
	PageParam     string
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Browser implements catalog.Browser over plain HTTP.
type Browser struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Browser.
func New(cfg Config, logger *zap.Logger) (*Browser, error) {
	if cfg.ListURL == "" {
		return nil, errors.New("list url is required")
	}
	if _, err := url.Parse(cfg.ListURL); err != nil {
		return nil, fmt.Errorf("parse list url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	return &Browser{cfg: cfg, logger: logger, baseCollector: c}, nil
}

// Close is a no-op; the shared transport is reclaimed with the process.
func (b *Browser) Close() error { return nil }

// FetchPage GETs key and returns the response body. Non-2xx statuses are
// errors. Cancelling ctx aborts the request in flight.
func (b *Browser) FetchPage(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("colly fetch canceled: %w", err)
	}
	collector := b.buildCollector(ctx)
	return runCollector(ctx, collector, key)
}

// OpenList fetches the first list page.
func (b *Browser) OpenList(ctx context.Context) (catalog.ListPage, error) {
	page := &listPage{browser: b, next: 1}
	if err := page.fetchNext(ctx); err != nil {
		return nil, err
	}
	return page, nil
}

func (b *Browser) buildCollector(ctx context.Context) *colly.Collector {
	collector := b.baseCollector.Clone()
	collector.Context = ctx
	if b.cfg.UserAgent != "" {
		collector.UserAgent = b.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !b.cfg.RespectRobots
	collector.SetRequestTimeout(b.cfg.Timeout)
	return collector
}

// pageURL returns the list URL for the n-th page (1-based).
func (b *Browser) pageURL(n int) (string, error) {
	if n <= 1 || b.cfg.PageParam == "" {
		return b.cfg.ListURL, nil
	}
	u, err := url.Parse(b.cfg.ListURL)
	if err != nil {
		return "", fmt.Errorf("parse list url: %w", err)
	}
	q := u.Query()
	q.Set(b.cfg.PageParam, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func configureCollectorHooks(hooks collectorHooks, body *string, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = string(r.Body)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		*fetchErr = err
	})
}

type fetchResult struct {
	body string
	err  error
}

// runCollector visits rawURL on its own goroutine. The callbacks only touch
// the goroutine's fetchResult, which is handed over through done once Visit
// returns.
func runCollector(ctx context.Context, collector *colly.Collector, rawURL string) (string, error) {
	done := make(chan fetchResult, 1)
	go func() {
		var (
			res      fetchResult
			fetchErr error
		)
		configureCollectorHooks(collector, &res.body, &fetchErr)
		visitErr := collector.Visit(rawURL)
		switch {
		case fetchErr != nil:
			res.err = fmt.Errorf("colly response failed: %w", fetchErr)
		case visitErr != nil:
			res.err = fmt.Errorf("colly visit failed: %w", visitErr)
		}
		done <- res
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return res.body, nil
	}
}

// listPage accumulates the markup of every list page fetched so far so link
// extraction sees the whole collection, as with an infinite-scroll page.
type listPage struct {
	browser *Browser

	mu        sync.Mutex
	parts     []string
	next      int
	exhausted bool
}

func (p *listPage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.parts, "\n"), nil
}

// LoadMore fetches the next page when pagination is configured. A failed
// page marks the list as exhausted.
func (p *listPage) LoadMore(ctx context.Context) error {
	if p.browser.cfg.PageParam == "" {
		return nil
	}
	p.mu.Lock()
	exhausted := p.exhausted
	p.mu.Unlock()
	if exhausted {
		return nil
	}
	if err := p.fetchNext(ctx); err != nil {
		p.mu.Lock()
		p.exhausted = true
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *listPage) fetchNext(ctx context.Context) error {
	p.mu.Lock()
	n := p.next
	p.mu.Unlock()
	target, err := p.browser.pageURL(n)
	if err != nil {
		return err
	}
	html, err := p.browser.FetchPage(ctx, target)
	if err != nil {
		return fmt.Errorf("fetch list page %d: %w", n, err)
	}
	p.browser.logger.Debug("list page fetched", zap.Int("page", n), zap.Int("bytes", len(html)))
	p.mu.Lock()
	p.parts = append(p.parts, html)
	p.next = n + 1
	p.mu.Unlock()
	return nil
}

func (p *listPage) Close() error { return nil }

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

// Package headless renders catalogue pages in headless Chrome via chromedp.
package headless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultLoadMoreSelector  = "button.load-more, a.load-more, [data-load-more]"
	DefaultNavigationTimeout = 45 * time.Second
	DefaultListWait          = 3 * time.Second
	DefaultPageWait          = time.Second
)

// Config controls the headless browser.
type Config struct {
	ListURL           string
	UserAgent         string
	Headless          bool
	ExecPath          string
	NavigationTimeout time.Duration
	// ListWait is the pause after the list page loads before the first poll.
	ListWait time.Duration
	// PageWait lets client-side rendering settle on item pages.
	PageWait         time.Duration
	LoadMoreSelector string
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = DefaultNavigationTimeout
	}
	if c.ListWait < 0 {
		c.ListWait = 0
	} else if c.ListWait == 0 {
		c.ListWait = DefaultListWait
	}
	if c.PageWait < 0 {
		c.PageWait = 0
	} else if c.PageWait == 0 {
		c.PageWait = DefaultPageWait
	}
	if c.LoadMoreSelector == "" {
		c.LoadMoreSelector = DefaultLoadMoreSelector
	}
	return c
}

// Browser implements catalog.Browser with one Chrome process and a tab per
// page.
type Browser struct {
	cfg           Config
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New starts Chrome and waits for it to accept commands. Startup failures
// are reported as catalog.ErrEngineUnavailable.
func New(cfg Config, logger *zap.Logger) (*Browser, error) {
	if cfg.ListURL == "" {
		return nil, errors.New("list url is required")
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: chromedp warmup: %w", catalog.ErrEngineUnavailable, err)
	}
	logger.Info("headless browser started", zap.Bool("headless", cfg.Headless))

	return &Browser{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close terminates Chrome. It is safe to call more than once.
func (b *Browser) Close() error {
	if b == nil {
		return nil
	}
	b.browserCancel()
	b.allocCancel()
	return nil
}

// FetchPage renders key in a fresh tab and returns the page's outer HTML.
func (b *Browser) FetchPage(ctx context.Context, key string) (string, error) {
	if err := b.alive(); err != nil {
		return "", err
	}
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, b.cfg.NavigationTimeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var html string
	tasks := chromedp.Tasks{
		b.setupAction(),
		chromedp.Navigate(key),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.cfg.PageWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return "", b.classify(fmt.Errorf("render %s: %w", key, err))
	}
	return html, nil
}

// OpenList navigates a long-lived tab to the list URL.
func (b *Browser) OpenList(ctx context.Context) (catalog.ListPage, error) {
	if err := b.alive(); err != nil {
		return nil, err
	}
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	// The first Run binds the tab to tabCtx; later runs use short-lived
	// children so a timeout does not close the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		return nil, b.classify(fmt.Errorf("open list tab: %w", err))
	}
	page := &listPage{browser: b, tabCtx: tabCtx, cancel: cancelTab}
	err := page.run(ctx,
		b.setupAction(),
		chromedp.Navigate(b.cfg.ListURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.cfg.ListWait),
	)
	if err != nil {
		cancelTab()
		return nil, fmt.Errorf("load list %s: %w", b.cfg.ListURL, err)
	}
	return page, nil
}

func (b *Browser) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

func (b *Browser) alive() error {
	if err := b.browserCtx.Err(); err != nil {
		return fmt.Errorf("%w: %w", catalog.ErrEngineUnavailable, err)
	}
	return nil
}

// classify promotes err to ErrEngineUnavailable when Chrome itself is gone.
func (b *Browser) classify(err error) error {
	if b.browserCtx.Err() != nil {
		return fmt.Errorf("%w: %w", catalog.ErrEngineUnavailable, err)
	}
	return err
}

type listPage struct {
	browser *Browser
	tabCtx  context.Context
	cancel  context.CancelFunc
}

func (p *listPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read list html: %w", err)
	}
	return html, nil
}

// LoadMore scrolls to the bottom and clicks the first visible load-more
// control, if any.
func (p *listPage) LoadMore(ctx context.Context) error {
	var clicked bool
	if err := p.run(ctx, chromedp.Evaluate(loadMoreScript(p.browser.cfg.LoadMoreSelector), &clicked)); err != nil {
		return fmt.Errorf("load more: %w", err)
	}
	p.browser.logger.Debug("load more", zap.Bool("clicked", clicked))
	return nil
}

func (p *listPage) Close() error {
	p.cancel()
	return nil
}

func (p *listPage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := p.browser.alive(); err != nil {
		return err
	}
	taskCtx, cancel := context.WithTimeout(p.tabCtx, p.browser.cfg.NavigationTimeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return p.browser.classify(err)
	}
	return nil
}

func loadMoreScript(selector string) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf(`(function(sel) {
  window.scrollTo(0, document.body.scrollHeight);
  var visible = function(el) { return !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length); };
  var candidates = Array.prototype.slice.call(document.querySelectorAll(sel));
  if (candidates.length === 0) {
    candidates = Array.prototype.slice.call(document.querySelectorAll('button')).filter(function(el) {
      return /load|more/i.test(el.textContent || '');
    });
  }
  for (var i = 0; i < candidates.length; i++) {
    if (visible(candidates[i])) { candidates[i].click(); return true; }
  }
  return false;
})(%s)`, quoted)
}

// forwardCancel cancels a task context derived from the browser when the
// caller's context ends.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

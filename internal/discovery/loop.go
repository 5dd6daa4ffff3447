// Package discovery enumerates item keys from a dynamically loaded list page
// by polling it until the set of discovered links stops growing.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/clock/system"
	"github.com/JakeFAU/filament-catalog/internal/progress"
)

// ErrHalted is returned when the caller's halt check fired mid-discovery.
var ErrHalted = errors.New("discovery halted")

const (
	defaultNoGrowthThreshold = 5
	defaultSettleInterval    = 1500 * time.Millisecond
	defaultEstimatedTotal    = 3056
)

// Config tunes the convergence heuristic.
//   - NoGrowthThreshold: consecutive unproductive polls that end discovery (default 5).
//   - SettleInterval: wait after each load-more trigger (default 1.5s).
//   - EstimatedTotal: expected collection size, used only for progress and ETA (default 3056).
type Config struct {
	NoGrowthThreshold int
	SettleInterval    time.Duration
	EstimatedTotal    int
}

// ProgressFunc receives (found, estimated total, message) after every poll.
type ProgressFunc func(current, total int, message string)

// Result is the outcome of one discovery pass.
type Result struct {
	Keys  []string
	Polls int
}

// Loop polls a rendered list page until convergence.
type Loop struct {
	cfg     Config
	browser catalog.Browser
	links   catalog.LinkExtractor
	clock   catalog.Clock
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New builds a Loop. clock and logger may be nil.
func New(
	cfg Config,
	browser catalog.Browser,
	links catalog.LinkExtractor,
	clock catalog.Clock,
	logger *zap.Logger,
) *Loop {
	if cfg.NoGrowthThreshold <= 0 {
		cfg.NoGrowthThreshold = defaultNoGrowthThreshold
	}
	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = defaultSettleInterval
	}
	if cfg.EstimatedTotal <= 0 {
		cfg.EstimatedTotal = defaultEstimatedTotal
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		cfg:     cfg,
		browser: browser,
		links:   links,
		clock:   clock,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Discover opens the list page and polls it until NoGrowthThreshold
// consecutive polls add no new key. halt is consulted once per poll; when it
// returns true the keys found so far are returned with ErrHalted. Keys are
// returned in first-seen order.
func (l *Loop) Discover(ctx context.Context, halt func() bool, report ProgressFunc) (Result, error) {
	page, err := l.browser.OpenList(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: open list: %w", catalog.ErrDiscoveryFailed, err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			l.logger.Debug("close list page", zap.Error(cerr))
		}
	}()

	set := catalog.NewDiscoverySet()
	start := l.clock.Now()
	noGrowth := 0
	polls := 0
	partial := func() Result { return Result{Keys: set.Keys(), Polls: polls} }

	for noGrowth < l.cfg.NoGrowthThreshold {
		if err := ctx.Err(); err != nil {
			return partial(), err
		}
		if halt != nil && halt() {
			return partial(), ErrHalted
		}
		polls++

		added, err := l.poll(ctx, page, set)
		if err != nil {
			return partial(), err
		}
		if added == 0 {
			noGrowth++
		} else {
			noGrowth = 0
		}
		if report != nil {
			report(set.Len(), l.cfg.EstimatedTotal, l.message(set.Len(), start))
		}
		l.logger.Debug("discovery poll",
			zap.Int("poll", polls),
			zap.Int("found", set.Len()),
			zap.Int("added", added),
			zap.Int("no_growth", noGrowth),
		)
		if noGrowth >= l.cfg.NoGrowthThreshold {
			break
		}

		if err := page.LoadMore(ctx); err != nil {
			if errors.Is(err, catalog.ErrEngineUnavailable) {
				return partial(), err
			}
			l.logger.Debug("load more failed", zap.Error(err))
		}
		if err := l.sleep(ctx, l.cfg.SettleInterval); err != nil {
			return partial(), err
		}
	}

	l.logger.Info("discovery converged", zap.Int("keys", set.Len()), zap.Int("polls", polls))
	return partial(), nil
}

// poll reads the current markup and merges its links into set. Transient
// read or parse errors count as an unproductive poll.
func (l *Loop) poll(ctx context.Context, page catalog.ListPage, set *catalog.DiscoverySet) (int, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrEngineUnavailable) {
			return 0, err
		}
		l.logger.Warn("read list page", zap.Error(err))
		return 0, nil
	}
	links, err := l.links.ItemLinks(html)
	if err != nil {
		l.logger.Warn("extract list links", zap.Error(err))
		return 0, nil
	}
	return set.Add(links...), nil
}

func (l *Loop) message(found int, start time.Time) string {
	total := l.cfg.EstimatedTotal
	pct := found * 100 / total
	if pct > 100 {
		pct = 100
	}
	eta := "estimating..."
	remaining := total - found
	if remaining < 0 {
		remaining = 0
	}
	if d, ok := progress.RateETA(l.clock.Now().Sub(start), found, remaining); ok {
		eta = progress.FormatDuration(d)
	}
	return fmt.Sprintf("Loading list: %d/%d (%d%%) - remaining: %s", found, total, pct, eta)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

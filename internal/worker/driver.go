// Package worker runs the crawl state machine: discover or resume, iterate the
// key list with skip-or-fetch decisions, merge-upsert each record and persist
// a checkpoint when paused.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/clock/system"
	"github.com/JakeFAU/filament-catalog/internal/discovery"
	"github.com/JakeFAU/filament-catalog/internal/progress"
)

// Discoverer enumerates the item keys of the list page.
type Discoverer interface {
	Discover(ctx context.Context, halt func() bool, report discovery.ProgressFunc) (discovery.Result, error)
}

// BrowserFactory starts a rendering engine for one crawl.
type BrowserFactory func(ctx context.Context) (catalog.Browser, error)

// DiscovererFactory binds a Discoverer to the crawl's browser.
type DiscovererFactory func(browser catalog.Browser) Discoverer

// Pacer spaces consecutive fetches.
type Pacer interface {
	Wait(ctx context.Context, key string) error
}

// Config controls Driver behavior.
type Config struct {
	// CheckpointOnFailure saves {keys, cursor} when the engine dies
	// mid-iteration so the crawl can be resumed.
	CheckpointOnFailure bool
}

// Deps bundles the Driver's collaborators. Pacer, Notifier, Emitter, Clock
// and Logger are optional.
type Deps struct {
	Browsers    BrowserFactory
	Discovery   DiscovererFactory
	Extractor   catalog.Extractor
	Records     catalog.RecordStore
	Checkpoints catalog.CheckpointStore
	Pacer       Pacer
	Notifier    catalog.Notifier
	Emitter     progress.Emitter
	Clock       catalog.Clock
	Logger      *zap.Logger
}

// Driver executes crawls. A Driver is stateless between runs; each Run owns
// its own browser, key list and counters.
type Driver struct {
	deps Deps
	cfg  Config
}

// New constructs a Driver.
func New(deps Deps, cfg Config) (*Driver, error) {
	switch {
	case deps.Browsers == nil:
		return nil, errors.New("browser factory is required")
	case deps.Discovery == nil:
		return nil, errors.New("discoverer factory is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Records == nil:
		return nil, errors.New("record store is required")
	case deps.Checkpoints == nil:
		return nil, errors.New("checkpoint store is required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Driver{deps: deps, cfg: cfg}, nil
}

// Run executes one crawl to a terminal state and returns its outcome.
// control is read without blocking once per loop iteration; it may be nil.
// Cancelling ctx behaves like a pause.
func (d *Driver) Run(
	ctx context.Context,
	sessionID uuid.UUID,
	opts Options,
	control <-chan Command,
	obs Observer,
) Outcome {
	if obs == nil {
		obs = NopObserver{}
	}
	r := &run{
		d:       d,
		id:      sessionID,
		opts:    opts,
		control: control,
		obs:     obs,
		logger:  d.deps.Logger.With(zap.String("session_id", sessionID.String())),
		started: d.deps.Clock.Now(),
	}
	return r.execute(ctx)
}

type run struct {
	d       *Driver
	id      uuid.UUID
	opts    Options
	control <-chan Command
	obs     Observer
	logger  *zap.Logger

	started   time.Time
	iterStart time.Time
	keys      []string
	cursor    int
	fetched   int
	skipped   int
	failed    int
	pending   Command
}

func (r *run) execute(ctx context.Context) Outcome {
	mode := "incremental"
	if r.opts.FullRefresh {
		mode = "full_refresh"
	}
	r.logger.Info("crawl starting", zap.String("mode", mode), zap.Bool("resume", r.opts.Resume != nil))
	r.emit(progress.StageCrawlStart, "", 0, 0, 0, mode)
	r.obs.Progress(0, 0, "Starting browser...")

	browser, err := r.d.deps.Browsers(ctx)
	if err != nil {
		if !errors.Is(err, catalog.ErrEngineUnavailable) {
			err = fmt.Errorf("%w: %w", catalog.ErrEngineUnavailable, err)
		}
		return r.fail(ctx, err, false)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			r.logger.Warn("close browser", zap.Error(cerr))
		}
	}()

	if r.opts.Resume != nil {
		if err := r.opts.Resume.Validate(); err != nil {
			return r.fail(ctx, err, false)
		}
		r.keys = append([]string(nil), r.opts.Resume.Keys...)
		r.cursor = r.opts.Resume.Cursor
		r.obs.Progress(r.cursor, len(r.keys),
			fmt.Sprintf("Resuming at %d/%d", r.cursor, len(r.keys)))
	} else if out, done := r.discover(ctx, browser); done {
		return out
	}
	return r.iterate(ctx, browser)
}

func (r *run) discover(ctx context.Context, browser catalog.Browser) (Outcome, bool) {
	r.obs.Progress(0, 0, "Loading item list...")
	report := func(current, total int, message string) {
		r.obs.Progress(current, total, message)
		r.emit(progress.StageDiscoveryPoll, "", current, total, 0, "")
	}
	halt := func() bool {
		_, ok := r.poll()
		return ok
	}
	res, err := r.d.deps.Discovery(browser).Discover(ctx, halt, report)
	r.keys = res.Keys
	switch {
	case errors.Is(err, discovery.ErrHalted):
		return r.interrupt(ctx, r.pending), true
	case err != nil && ctx.Err() != nil:
		return r.interrupt(ctx, CommandPause), true
	case err != nil:
		if !errors.Is(err, catalog.ErrDiscoveryFailed) && !errors.Is(err, catalog.ErrEngineUnavailable) {
			err = fmt.Errorf("%w: %w", catalog.ErrDiscoveryFailed, err)
		}
		return r.fail(ctx, err, false), true
	}
	r.logger.Info("discovery finished", zap.Int("keys", len(r.keys)), zap.Int("polls", res.Polls))
	r.obs.Progress(0, len(r.keys), fmt.Sprintf("Found %d items to crawl", len(r.keys)))
	return Outcome{}, false
}

func (r *run) iterate(ctx context.Context, browser catalog.Browser) Outcome {
	total := len(r.keys)
	r.iterStart = r.d.deps.Clock.Now()
	for r.cursor < total {
		if cmd, ok := r.poll(); ok {
			return r.interrupt(ctx, cmd)
		}
		if ctx.Err() != nil {
			return r.interrupt(ctx, CommandPause)
		}
		key := r.keys[r.cursor]

		if !r.opts.FullRefresh && r.isComplete(ctx, key) {
			r.skipped++
			r.cursor++
			r.emit(progress.StageItemSkipped, key, r.cursor, total, 0, "")
			r.obs.Progress(r.cursor, total,
				fmt.Sprintf("[%d/%d] Skipped (complete) - %d skipped", r.cursor, total, r.skipped))
			continue
		}

		if r.d.deps.Pacer != nil {
			if err := r.d.deps.Pacer.Wait(ctx, key); err != nil {
				if ctx.Err() != nil {
					continue
				}
				r.logger.Debug("pacer wait", zap.Error(err))
			}
		}
		label, err := r.process(ctx, browser, key)
		if errors.Is(err, errItemInterrupted) {
			return r.interrupt(ctx, CommandPause)
		}
		if err != nil {
			return r.fail(ctx, err, true)
		}
		r.cursor++
		r.obs.Progress(r.cursor, total, r.itemMessage(label, total))
	}
	return r.complete(ctx)
}

// errItemInterrupted reports that the run context ended while an item was in
// flight. The item is left at the cursor so a resumed crawl retries it.
var errItemInterrupted = errors.New("item interrupted")

// process fetches, extracts and stores one key. It returns an engine failure
// or errItemInterrupted; every other problem is counted and absorbed.
func (r *run) process(ctx context.Context, browser catalog.Browser, key string) (string, error) {
	total := len(r.keys)
	start := r.d.deps.Clock.Now()
	itemFailed := func(stage string, err error) (string, error) {
		if ctx.Err() != nil {
			r.logger.Debug("item interrupted", zap.String("key", key), zap.String("stage", stage), zap.Error(err))
			return "", errItemInterrupted
		}
		r.failed++
		r.logger.Warn("item failed", zap.String("key", key), zap.String("stage", stage), zap.Error(err))
		r.emit(progress.StageItemFailed, key, r.cursor+1, total, r.d.deps.Clock.Now().Sub(start), stage+": "+err.Error())
		return "error", nil
	}

	html, err := browser.FetchPage(ctx, key)
	if err != nil {
		if errors.Is(err, catalog.ErrEngineUnavailable) && ctx.Err() == nil {
			return "", err
		}
		return itemFailed("fetch", err)
	}
	partial, err := r.d.deps.Extractor.Extract(key, html)
	if err != nil {
		return itemFailed("extract", err)
	}
	id, err := r.d.deps.Records.Upsert(ctx, key, partial, r.opts.FullRefresh)
	if err != nil {
		return itemFailed("store", err)
	}
	r.fetched++

	rec, err := r.d.deps.Records.Get(ctx, key)
	if err != nil {
		r.logger.Debug("reload merged record", zap.String("key", key), zap.Error(err))
		rec = partial.Clone()
		rec.Key = key
		rec.ID = id
	}
	r.obs.RecordUpdated(rec)
	if r.d.deps.Notifier != nil {
		if err := r.d.deps.Notifier.Publish(ctx, rec); err != nil {
			r.logger.Warn("publish record update", zap.String("key", key), zap.Error(err))
		}
	}
	dur := r.d.deps.Clock.Now().Sub(start)
	r.emit(progress.StageItemFetched, key, r.cursor+1, total, dur, "")
	r.logger.Debug("item stored", zap.String("key", key), zap.Int64("id", id), zap.Duration("dur", dur))

	if rec.Name != "" {
		return rec.Name, nil
	}
	return key, nil
}

// isComplete treats store errors as "incomplete" so the item is re-fetched.
func (r *run) isComplete(ctx context.Context, key string) bool {
	ok, err := r.d.deps.Records.IsComplete(ctx, key)
	if err != nil {
		r.logger.Warn("completeness check failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (r *run) itemMessage(label string, total int) string {
	msg := fmt.Sprintf("[%d/%d] %s", r.cursor, total, label)
	if r.skipped > 0 {
		msg += fmt.Sprintf(" (%d skipped)", r.skipped)
	}
	eta := "estimating..."
	if d, ok := r.eta(total); ok {
		eta = progress.FormatDuration(d)
	}
	return msg + " - remaining: " + eta
}

// eta extrapolates from items actually fetched, scaling the remaining work by
// the share of items that needed fetching so far.
func (r *run) eta(total int) (time.Duration, bool) {
	attempted := r.fetched + r.failed
	remaining := total - r.cursor
	if seen := attempted + r.skipped; seen > 0 {
		remaining = remaining * attempted / seen
	}
	return progress.RateETA(r.d.deps.Clock.Now().Sub(r.iterStart), attempted, remaining)
}

// poll performs a non-blocking read of the control channel. A received
// command stays pending so later checks observe it too.
func (r *run) poll() (Command, bool) {
	if r.pending != 0 {
		return r.pending, true
	}
	select {
	case cmd, ok := <-r.control:
		if !ok || (cmd != CommandPause && cmd != CommandStop) {
			return 0, false
		}
		r.pending = cmd
		return cmd, true
	default:
		return 0, false
	}
}

func (r *run) interrupt(ctx context.Context, cmd Command) Outcome {
	total := len(r.keys)
	if cmd == CommandStop {
		if err := r.d.deps.Checkpoints.Clear(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("clear checkpoint on stop", zap.Error(err))
		}
		r.logger.Info("crawl stopped", zap.Int("cursor", r.cursor), zap.Int("total", total))
		r.emit(progress.StageCrawlStopped, "", r.cursor, total, r.elapsed(), "")
		r.obs.Stopped()
		return r.outcome(StatusStopped, nil)
	}

	cp := catalog.NewCheckpoint(r.keys, r.cursor, r.d.deps.Clock.Now())
	if err := r.d.deps.Checkpoints.Save(context.WithoutCancel(ctx), cp); err != nil {
		return r.fail(ctx, fmt.Errorf("save checkpoint: %w", err), false)
	}
	r.logger.Info("crawl paused", zap.Int("cursor", r.cursor), zap.Int("total", total))
	r.emit(progress.StageCrawlPaused, "", r.cursor, total, r.elapsed(), "")
	r.obs.Paused(r.cursor, total)
	return r.outcome(StatusPaused, nil)
}

func (r *run) complete(ctx context.Context) Outcome {
	if err := r.d.deps.Checkpoints.Clear(ctx); err != nil {
		r.logger.Warn("clear checkpoint", zap.Error(err))
	}
	r.logger.Info("crawl completed",
		zap.Int("fetched", r.fetched),
		zap.Int("skipped", r.skipped),
		zap.Int("failed", r.failed),
	)
	r.emit(progress.StageCrawlDone, "", r.cursor, len(r.keys), r.elapsed(), "")
	r.obs.Finished(r.fetched)
	return r.outcome(StatusCompleted, nil)
}

// fail reports a fatal error. With checkpoint set (mid-iteration engine
// failure) the current position is saved when configured to.
func (r *run) fail(ctx context.Context, err error, checkpoint bool) Outcome {
	if checkpoint && r.d.cfg.CheckpointOnFailure && len(r.keys) > 0 {
		cp := catalog.NewCheckpoint(r.keys, r.cursor, r.d.deps.Clock.Now())
		if serr := r.d.deps.Checkpoints.Save(context.WithoutCancel(ctx), cp); serr != nil {
			r.logger.Warn("save checkpoint after failure", zap.Error(serr))
		} else {
			r.logger.Info("checkpoint saved after failure", zap.Int("cursor", r.cursor))
		}
	}
	r.logger.Error("crawl failed", zap.Int("cursor", r.cursor), zap.Error(err))
	r.emit(progress.StageCrawlFailed, "", r.cursor, len(r.keys), r.elapsed(), err.Error())
	r.obs.Failed(err.Error())
	return r.outcome(StatusFailed, err)
}

func (r *run) outcome(status Status, err error) Outcome {
	out := Outcome{
		SessionID:  r.id,
		Status:     status,
		Fetched:    r.fetched,
		Skipped:    r.skipped,
		Failed:     r.failed,
		Cursor:     r.cursor,
		Total:      len(r.keys),
		StartedAt:  r.started,
		FinishedAt: r.d.deps.Clock.Now(),
		Err:        err,
	}
	if err != nil {
		out.Diagnostic = err.Error()
	}
	return out
}

func (r *run) elapsed() time.Duration {
	d := r.d.deps.Clock.Now().Sub(r.started)
	if d < 0 {
		return 0
	}
	return d
}

func (r *run) emit(stage progress.Stage, key string, current, total int, dur time.Duration, note string) {
	if r.d.deps.Emitter == nil {
		return
	}
	if dur < 0 {
		dur = 0
	}
	r.d.deps.Emitter.Emit(progress.Event{
		SessionID: progress.UUIDToBytes(r.id),
		TS:        r.d.deps.Clock.Now().UTC(),
		Stage:     stage,
		Key:       key,
		Current:   int64(current),
		Total:     int64(total),
		Dur:       dur,
		Note:      note,
	})
}

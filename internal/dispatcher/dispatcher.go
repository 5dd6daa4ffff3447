// Package dispatcher runs crawls in the background and routes pause/stop
// commands to the active one.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/worker"
)

// Runner executes a single crawl. *worker.Driver satisfies it.
type Runner interface {
	Run(ctx context.Context, sessionID uuid.UUID, opts worker.Options,
		control <-chan worker.Command, obs worker.Observer) worker.Outcome
}

// State describes whether a crawl is active.
type State string

// Controller states.
const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePausing  State = "pausing"
	StateStopping State = "stopping"
)

// Status is a point-in-time view of the controller.
type Status struct {
	State       State           `json:"state"`
	SessionID   *uuid.UUID      `json:"session_id,omitempty"`
	FullRefresh bool            `json:"full_refresh"`
	Current     int             `json:"current"`
	Total       int             `json:"total"`
	Message     string          `json:"message,omitempty"`
	Updated     int             `json:"records_updated"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	Last        *worker.Outcome `json:"last,omitempty"`
}

// Controller owns at most one running crawl.
type Controller struct {
	runner      Runner
	checkpoints catalog.CheckpointStore
	newID       func() (uuid.UUID, error)
	observer    worker.Observer
	logger      *zap.Logger

	mu      sync.Mutex
	status  Status
	control chan worker.Command
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Controller. observer receives every driver signal in
// addition to the controller's own bookkeeping and may be nil.
func New(
	runner Runner,
	checkpoints catalog.CheckpointStore,
	newID func() (uuid.UUID, error),
	observer worker.Observer,
	logger *zap.Logger,
) *Controller {
	if newID == nil {
		newID = uuid.NewV7
	}
	if observer == nil {
		observer = worker.NopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		runner:      runner,
		checkpoints: checkpoints,
		newID:       newID,
		observer:    observer,
		logger:      logger,
		status:      Status{State: StateIdle},
	}
}

// Start launches a crawl in the background. The crawl is detached from
// ctx's cancellation; use Pause, Stop or Shutdown to end it early.
func (c *Controller) Start(ctx context.Context, opts worker.Options) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.State != StateIdle {
		return uuid.Nil, catalog.ErrCrawlRunning
	}
	id, err := c.newID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate session id: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	control := make(chan worker.Command, 1)
	done := make(chan struct{})
	now := time.Now().UTC()
	c.control, c.cancel, c.done = control, cancel, done
	c.status = Status{
		State:       StateRunning,
		SessionID:   &id,
		FullRefresh: opts.FullRefresh,
		StartedAt:   &now,
		Last:        c.status.Last,
	}
	if opts.Resume != nil {
		c.status.Current = opts.Resume.Cursor
		c.status.Total = len(opts.Resume.Keys)
	}

	c.logger.Info("crawl started",
		zap.String("session_id", id.String()),
		zap.Bool("full_refresh", opts.FullRefresh),
		zap.Bool("resume", opts.Resume != nil),
	)
	obs := worker.MultiObserver{&tracker{c: c}, c.observer}
	go func() {
		defer close(done)
		defer cancel()
		out := c.runner.Run(runCtx, id, opts, control, obs)
		c.finish(out)
	}()
	return id, nil
}

// StartFromCheckpoint resumes the stored checkpoint. It returns
// catalog.ErrNoCheckpoint when there is nothing to resume.
func (c *Controller) StartFromCheckpoint(ctx context.Context, fullRefresh bool) (uuid.UUID, error) {
	cp, err := c.checkpoints.Load(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil {
		return uuid.Nil, catalog.ErrNoCheckpoint
	}
	return c.Start(ctx, worker.Options{FullRefresh: fullRefresh, Resume: cp})
}

// Pause asks the running crawl to save a checkpoint and exit.
func (c *Controller) Pause() error {
	return c.send(worker.CommandPause, StatePausing)
}

// Stop asks the running crawl to exit without saving a checkpoint.
func (c *Controller) Stop() error {
	return c.send(worker.CommandStop, StateStopping)
}

func (c *Controller) send(cmd worker.Command, next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.State != StateRunning {
		if c.status.State == StateIdle {
			return catalog.ErrNoCrawlRunning
		}
		// A command is already in flight; the first one wins.
		return nil
	}
	select {
	case c.control <- cmd:
		c.status.State = next
		c.logger.Info("crawl command sent", zap.Stringer("command", cmd))
	default:
	}
	return nil
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Running reports whether a crawl is active.
func (c *Controller) Running() bool {
	return c.Status().State != StateIdle
}

// Wait blocks until the active crawl finishes and returns its outcome. When
// no crawl is active it returns the last outcome, or ErrNoCrawlRunning if
// none has run yet.
func (c *Controller) Wait(ctx context.Context) (worker.Outcome, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return worker.Outcome{}, ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Last == nil {
		return worker.Outcome{}, catalog.ErrNoCrawlRunning
	}
	return *c.status.Last, nil
}

// Shutdown cancels the active crawl, which pauses it with a checkpoint, and
// waits for it to exit.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	running := c.status.State != StateIdle
	c.mu.Unlock()
	if !running {
		return nil
	}
	cancel()
	if _, err := c.Wait(ctx); err != nil && !errors.Is(err, catalog.ErrNoCrawlRunning) {
		return fmt.Errorf("wait for crawl: %w", err)
	}
	return nil
}

func (c *Controller) finish(out worker.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.State = StateIdle
	c.status.Current = out.Cursor
	c.status.Total = out.Total
	c.status.Last = &out
	c.control = nil
	c.cancel = nil
	c.logger.Info("crawl finished",
		zap.String("session_id", out.SessionID.String()),
		zap.String("status", string(out.Status)),
		zap.Int("fetched", out.Fetched),
		zap.Int("skipped", out.Skipped),
		zap.Int("failed", out.Failed),
	)
}

// tracker mirrors driver signals into the controller's status.
type tracker struct {
	c *Controller
}

func (t *tracker) Progress(current, total int, message string) {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.status.Current = current
	t.c.status.Total = total
	t.c.status.Message = message
}

func (t *tracker) RecordUpdated(catalog.MaterialRecord) {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.status.Updated++
}

func (t *tracker) Finished(total int) {
	t.message(fmt.Sprintf("Done! Fetched %d records", total))
}

func (t *tracker) Paused(cursor, total int) {
	t.message(fmt.Sprintf("Paused at %d/%d", cursor, total))
}

func (t *tracker) Stopped() { t.message("Stopped") }

func (t *tracker) Failed(diagnostic string) { t.message("Failed: " + diagnostic) }

func (t *tracker) message(msg string) {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.status.Message = msg
}

package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/progress"
	"github.com/JakeFAU/filament-catalog/internal/store"
)

// StoreSink persists crawl session history via a store.SessionRepository. It
// collapses item events per session so each batch costs at most one write per
// session plus lifecycle writes.
type StoreSink struct {
	repo   store.SessionRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.SessionRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume applies lifecycle events in order and item deltas in aggregate. It
// respects ctx deadlines and returns any repository errors wrapped.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	deltas := make(map[uuid.UUID]*pendingDelta)
	var order []uuid.UUID

	for _, evt := range batch {
		id := evt.SessionUUID()
		switch {
		case evt.Stage == progress.StageCrawlStart:
			if err := s.repo.StartSession(ctx, id, evt.TS); err != nil {
				return fmt.Errorf("start session: %w", err)
			}
		case evt.Stage.Terminal():
			// Counters accumulated before the terminal event must land first.
			if err := s.flushOne(ctx, id, deltas[id]); err != nil {
				return err
			}
			delete(deltas, id)
			if err := s.finish(ctx, id, evt); err != nil {
				return err
			}
		default:
			d := deltas[id]
			if d == nil {
				d = &pendingDelta{}
				deltas[id] = d
				order = append(order, id)
			}
			d.add(evt)
		}
	}

	for _, id := range order {
		if err := s.flushOne(ctx, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) flushOne(ctx context.Context, id uuid.UUID, d *pendingDelta) error {
	if d == nil || d.delta.Empty() {
		return nil
	}
	if err := s.repo.ApplyDelta(ctx, id, d.delta, d.at); err != nil {
		return fmt.Errorf("apply session delta: %w", err)
	}
	d.delta = store.ItemDelta{}
	return nil
}

func (s *StoreSink) finish(ctx context.Context, id uuid.UUID, evt progress.Event) error {
	var note *string
	if evt.Note != "" {
		note = &evt.Note
	}
	if err := s.repo.FinishSession(ctx, id, evt.TS, StatusForStage(evt.Stage), note); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// StatusForStage maps a terminal stage to the persisted session status.
func StatusForStage(stage progress.Stage) store.SessionStatus {
	switch stage {
	case progress.StageCrawlDone:
		return store.SessionCompleted
	case progress.StageCrawlPaused:
		return store.SessionPaused
	case progress.StageCrawlStopped:
		return store.SessionStopped
	case progress.StageCrawlFailed:
		return store.SessionFailed
	default:
		return store.SessionRunning
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type pendingDelta struct {
	delta store.ItemDelta
	at    time.Time
}

func (p *pendingDelta) add(evt progress.Event) {
	switch evt.Stage {
	case progress.StageDiscoveryPoll:
		p.delta.Discovered = max(p.delta.Discovered, evt.Current)
	case progress.StageItemFetched:
		p.delta.Fetched++
		p.delta.Cursor = max(p.delta.Cursor, evt.Current)
	case progress.StageItemSkipped:
		p.delta.Skipped++
		p.delta.Cursor = max(p.delta.Cursor, evt.Current)
	case progress.StageItemFailed:
		p.delta.Failed++
		p.delta.Cursor = max(p.delta.Cursor, evt.Current)
	default:
		return
	}
	if evt.TS.After(p.at) {
		p.at = evt.TS
	}
}

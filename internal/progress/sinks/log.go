package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/progress"
)

// LogSink writes crawl progress to a zap logger. Per-item stages go to debug,
// failures to warn and session lifecycle to info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a LogSink; a nil logger discards output.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("progress")}
}

var stageMessages = map[progress.Stage]string{
	progress.StageCrawlStart:    "crawl started",
	progress.StageDiscoveryPoll: "discovery poll",
	progress.StageItemFetched:   "material fetched",
	progress.StageItemSkipped:   "material skipped",
	progress.StageItemFailed:    "material failed",
	progress.StageCrawlDone:     "crawl finished",
	progress.StageCrawlPaused:   "crawl paused",
	progress.StageCrawlStopped:  "crawl stopped",
	progress.StageCrawlFailed:   "crawl failed",
}

func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		msg, ok := stageMessages[evt.Stage]
		if !ok {
			msg = "progress event"
		}
		fields := []zap.Field{
			zap.String("session_id", evt.SessionUUID().String()),
			zap.Int64("current", evt.Current),
		}
		if evt.Total > 0 {
			fields = append(fields, zap.Int64("total", evt.Total), zap.Int64("remaining", max(evt.Total-evt.Current, 0)))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Key != "" {
			fields = append(fields, zap.String("key", evt.Key))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch {
		case evt.Stage == progress.StageItemFailed || evt.Stage == progress.StageCrawlFailed:
			s.logger.Warn(msg, fields...)
		case evt.Stage == progress.StageCrawlStart || evt.Stage.Terminal():
			s.logger.Info(msg, fields...)
		default:
			s.logger.Debug(msg, fields...)
		}
	}
	return nil
}

func (s *LogSink) Close(context.Context) error { return nil }

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/api"
	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/config"
	"github.com/JakeFAU/filament-catalog/internal/dispatcher"
	"github.com/JakeFAU/filament-catalog/internal/logging"
	"github.com/JakeFAU/filament-catalog/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "Path to config file")
	once := flag.Bool("once", false, "Run a single crawl in the foreground instead of serving the API")
	fullRefresh := flag.Bool("full-refresh", false, "Re-fetch every item and overwrite stored fields (with -once)")
	resume := flag.Bool("resume", false, "Continue from the saved checkpoint (with -once)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var observer worker.Observer
	if *once {
		observer = consoleObserver{logger: logger.Named("crawl")}
	}
	app, err := build(ctx, cfg, observer, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return 1
	}
	defer app.close(logger)

	if *once {
		if err := runOnce(ctx, app, *fullRefresh || cfg.Crawl.FullRefreshDefault, *resume, logger); err != nil {
			return 1
		}
		return 0
	}
	serve(ctx, stop, cfg, app, logger)
	return 0
}

func serve(ctx context.Context, stop context.CancelFunc, cfg config.Config, app *application, logger *zap.Logger) {
	apiServer := api.NewServer(api.Deps{
		Crawl:       app.controller,
		Records:     app.records,
		Checkpoints: app.checkpoints,
		Sessions:    app.sessions,
	}, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := app.controller.Shutdown(shutdownCtx); err != nil {
		logger.Error("crawl shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// runOnce drives a single crawl. An interrupt pauses the crawl so its
// checkpoint is written before the process exits.
func runOnce(ctx context.Context, app *application, fullRefresh, resume bool, logger *zap.Logger) error {
	start := app.controller.StartFromCheckpoint
	if !resume {
		start = func(ctx context.Context, fullRefresh bool) (uuid.UUID, error) {
			return app.controller.Start(ctx, worker.Options{FullRefresh: fullRefresh})
		}
	}
	id, err := start(ctx, fullRefresh)
	if err != nil {
		if errors.Is(err, catalog.ErrNoCheckpoint) {
			logger.Warn("nothing to resume; run without -resume to start a fresh crawl")
			return err
		}
		logger.Error("start crawl failed", zap.Error(err))
		return err
	}
	logger.Info("crawl started", zap.String("session_id", id.String()), zap.Bool("full_refresh", fullRefresh))

	go func() {
		<-ctx.Done()
		if err := app.controller.Pause(); err != nil && !errors.Is(err, catalog.ErrNoCrawlRunning) {
			logger.Warn("pause on interrupt failed", zap.Error(err))
		}
	}()

	out, err := app.controller.Wait(context.Background())
	if err != nil {
		logger.Error("wait for crawl failed", zap.Error(err))
		return err
	}
	logger.Info("crawl finished",
		zap.String("status", string(out.Status)),
		zap.Int("fetched", out.Fetched),
		zap.Int("skipped", out.Skipped),
		zap.Int("failed", out.Failed),
		zap.Int("cursor", out.Cursor),
		zap.Int("total", out.Total),
	)
	return out.Err
}

// consoleObserver logs driver progress for foreground runs.
type consoleObserver struct {
	logger *zap.Logger
}

func (o consoleObserver) Progress(current, total int, message string) {
	o.logger.Info(message, zap.Int("current", current), zap.Int("total", total))
}

func (o consoleObserver) RecordUpdated(rec catalog.MaterialRecord) {
	o.logger.Debug("record updated", zap.String("key", rec.Key), zap.String("name", rec.Name))
}

func (o consoleObserver) Finished(total int) {
	o.logger.Info("crawl complete", zap.Int("records", total))
}

func (o consoleObserver) Paused(cursor, total int) {
	o.logger.Info("crawl paused; rerun with -resume to continue", zap.Int("cursor", cursor), zap.Int("total", total))
}

func (o consoleObserver) Stopped() {
	o.logger.Info("crawl stopped")
}

func (o consoleObserver) Failed(diagnostic string) {
	o.logger.Error("crawl failed", zap.String("error", diagnostic))
}

var _ api.Crawler = (*dispatcher.Controller)(nil)

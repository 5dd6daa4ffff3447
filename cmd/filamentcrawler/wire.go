package main

import (
	"context"
	"fmt"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/api"
	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/clock/system"
	"github.com/JakeFAU/filament-catalog/internal/config"
	"github.com/JakeFAU/filament-catalog/internal/discovery"
	"github.com/JakeFAU/filament-catalog/internal/dispatcher"
	"github.com/JakeFAU/filament-catalog/internal/extract"
	"github.com/JakeFAU/filament-catalog/internal/id/uuid"
	"github.com/JakeFAU/filament-catalog/internal/metrics"
	memorynotify "github.com/JakeFAU/filament-catalog/internal/notify/memory"
	pubsubnotify "github.com/JakeFAU/filament-catalog/internal/notify/pubsub"
	redisnotify "github.com/JakeFAU/filament-catalog/internal/notify/redis"
	"github.com/JakeFAU/filament-catalog/internal/policy/ratelimit"
	"github.com/JakeFAU/filament-catalog/internal/progress"
	"github.com/JakeFAU/filament-catalog/internal/progress/sinks"
	"github.com/JakeFAU/filament-catalog/internal/render/headless"
	"github.com/JakeFAU/filament-catalog/internal/render/static"
	"github.com/JakeFAU/filament-catalog/internal/storage/gcs"
	"github.com/JakeFAU/filament-catalog/internal/storage/local"
	"github.com/JakeFAU/filament-catalog/internal/storage/memory"
	"github.com/JakeFAU/filament-catalog/internal/storage/postgres"
	redisstore "github.com/JakeFAU/filament-catalog/internal/storage/redis"
	"github.com/JakeFAU/filament-catalog/internal/store"
	"github.com/JakeFAU/filament-catalog/internal/worker"
)

// catalogStore is what the driver writes and the API reads.
type catalogStore interface {
	catalog.RecordStore
	api.RecordReader
}

// application holds the wired components and the cleanup they need.
type application struct {
	controller  *dispatcher.Controller
	records     catalogStore
	checkpoints catalog.CheckpointStore
	sessions    store.SessionRepository
	hub         *progress.Hub
	closers     []func() error
}

func (a *application) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse acquisition order.
func (a *application) close(logger *zap.Logger) {
	if a.hub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.hub.Close(ctx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

// build wires every component from cfg. On error everything acquired so far
// is released.
func build(ctx context.Context, cfg config.Config, observer worker.Observer, logger *zap.Logger) (app *application, err error) {
	app = &application{}
	defer func() {
		if err != nil {
			app.close(logger)
			app = nil
		}
	}()

	redisClient := lazyRedis(ctx, cfg.Storage.RedisAddr, app)

	if err = wireRecords(ctx, cfg, app); err != nil {
		return app, err
	}
	if app.checkpoints, err = newCheckpointStore(ctx, cfg, redisClient, app); err != nil {
		return app, err
	}
	notifier, err := newNotifier(ctx, cfg, redisClient, app)
	if err != nil {
		return app, err
	}
	extractor, err := extract.New(cfg.BaseURL(), cfg.Source.ItemPath)
	if err != nil {
		return app, fmt.Errorf("build extractor: %w", err)
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return app, fmt.Errorf("register crawl metrics: %w", err)
	}
	app.hub = progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   time.Duration(cfg.Progress.MaxBatchWaitMs) * time.Millisecond,
		Logger:         logger.Named("progress"),
	},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		sinks.NewStoreSink(app.sessions, logger.Named("sessions")),
	)

	clock := system.New()
	pacer := ratelimit.New(ratelimit.Config{
		Interval: pacerInterval(cfg.RequestDelay()),
		OnDelay:  metrics.ObservePacerDelay,
	})
	driver, err := worker.New(worker.Deps{
		Browsers:    browserFactory(cfg, logger.Named("render")),
		Discovery:   discovererFactory(cfg, extractor, clock, logger.Named("discovery")),
		Extractor:   extractor,
		Records:     app.records,
		Checkpoints: app.checkpoints,
		Pacer:       pacer,
		Notifier:    metrics.InstrumentNotifier(notifier),
		Emitter:     app.hub,
		Clock:       clock,
		Logger:      logger.Named("worker"),
	}, worker.Config{CheckpointOnFailure: cfg.Crawl.CheckpointOnFailure})
	if err != nil {
		return app, fmt.Errorf("build driver: %w", err)
	}

	app.controller = dispatcher.New(driver, app.checkpoints, uuid.New().NewSessionID, observer, logger.Named("dispatcher"))
	return app, nil
}

func wireRecords(ctx context.Context, cfg config.Config, app *application) error {
	if cfg.Storage.Records != config.BackendPostgres {
		app.records = memory.NewRecordStore()
		app.sessions = memory.NewSessionStore()
		return nil
	}
	pool, err := postgres.Connect(ctx, postgres.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}
	app.onClose(func() error { pool.Close(); return nil })
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	records, err := postgres.NewRecordStore(pool)
	if err != nil {
		return err
	}
	sessions, err := postgres.NewSessionStore(pool)
	if err != nil {
		return err
	}
	app.records = records
	app.sessions = sessions
	return nil
}

func newCheckpointStore(
	ctx context.Context,
	cfg config.Config,
	redisClient func() (*goredis.Client, error),
	app *application,
) (catalog.CheckpointStore, error) {
	switch cfg.Storage.Checkpoint {
	case config.BackendMemory:
		return memory.NewCheckpointStore(), nil
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		app.onClose(client.Close)
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Object: cfg.Storage.GCSObject})
	case config.BackendRedis:
		client, err := redisClient()
		if err != nil {
			return nil, err
		}
		return redisstore.New(client, cfg.Storage.RedisKey)
	default:
		return local.New(local.Config{Path: cfg.Storage.CheckpointPath})
	}
}

func newNotifier(
	ctx context.Context,
	cfg config.Config,
	redisClient func() (*goredis.Client, error),
	app *application,
) (catalog.Notifier, error) {
	var notifier catalog.Notifier
	switch cfg.Notify.Kind {
	case config.NotifyPubSub:
		pub, err := pubsubnotify.Dial(ctx, cfg.Notify.ProjectID, cfg.Notify.Topic)
		if err != nil {
			return nil, err
		}
		notifier = pub
	case config.NotifyRedis:
		client, err := redisClient()
		if err != nil {
			return nil, err
		}
		pub, err := redisnotify.New(client, cfg.Notify.Stream, nil)
		if err != nil {
			return nil, err
		}
		notifier = pub
	default:
		return memorynotify.Discard{}, nil
	}
	app.onClose(notifier.Close)
	return notifier, nil
}

// lazyRedis dials addr on first use so the checkpoint store and the stream
// notifier share one client.
func lazyRedis(ctx context.Context, addr string, app *application) func() (*goredis.Client, error) {
	var client *goredis.Client
	return func() (*goredis.Client, error) {
		if client != nil {
			return client, nil
		}
		c, err := redisstore.Dial(ctx, addr)
		if err != nil {
			return nil, err
		}
		app.onClose(c.Close)
		client = c
		return client, nil
	}
}

func browserFactory(cfg config.Config, logger *zap.Logger) worker.BrowserFactory {
	if cfg.Renderer.Kind == config.RendererColly {
		return func(context.Context) (catalog.Browser, error) {
			return static.New(static.Config{
				ListURL:       cfg.Source.ListURL,
				PageParam:     cfg.Renderer.PageParam,
				UserAgent:     cfg.Renderer.UserAgent,
				RespectRobots: cfg.Renderer.RespectRobots,
				Timeout:       cfg.NavTimeout(),
			}, logger)
		}
	}
	return func(context.Context) (catalog.Browser, error) {
		return headless.New(headless.Config{
			ListURL:           cfg.Source.ListURL,
			UserAgent:         cfg.Renderer.UserAgent,
			Headless:          cfg.Renderer.Headless,
			ExecPath:          cfg.Renderer.ExecPath,
			NavigationTimeout: cfg.NavTimeout(),
			ListWait:          time.Duration(cfg.Renderer.ListWaitMs) * time.Millisecond,
			PageWait:          time.Duration(cfg.Renderer.PageWaitMs) * time.Millisecond,
			LoadMoreSelector:  cfg.Renderer.LoadMoreSelector,
		}, logger)
	}
}

func discovererFactory(
	cfg config.Config,
	links catalog.LinkExtractor,
	clock catalog.Clock,
	logger *zap.Logger,
) worker.DiscovererFactory {
	dcfg := discovery.Config{
		NoGrowthThreshold: cfg.Discovery.NoGrowthThreshold,
		SettleInterval:    cfg.SettleInterval(),
		EstimatedTotal:    cfg.Source.EstimatedTotal,
	}
	return func(browser catalog.Browser) worker.Discoverer {
		return discovery.New(dcfg, browser, links, clock, logger)
	}
}

// pacerInterval maps the configured delay onto ratelimit semantics, where zero
// means "use the default" and negative disables pacing.
func pacerInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return -1
	}
	return d
}

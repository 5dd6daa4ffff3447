package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/config"
	"github.com/JakeFAU/filament-catalog/internal/dispatcher"
	"github.com/JakeFAU/filament-catalog/internal/render/static"
	"github.com/JakeFAU/filament-catalog/internal/storage/local"
	"github.com/JakeFAU/filament-catalog/internal/storage/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Records = config.BackendMemory
	cfg.Storage.Checkpoint = config.BackendLocal
	cfg.Storage.CheckpointPath = filepath.Join(t.TempDir(), "progress", "scrape_progress.json")
	cfg.Notify.Kind = config.NotifyNone
	return cfg
}

func TestBuildWiresMemoryBackends(t *testing.T) {
	cfg := testConfig(t)

	app, err := build(context.Background(), cfg, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.close(zap.NewNop()) })

	require.NotNil(t, app.controller)
	require.IsType(t, &memory.RecordStore{}, app.records)
	require.IsType(t, &memory.SessionStore{}, app.sessions)
	require.IsType(t, &local.CheckpointStore{}, app.checkpoints)
	require.Equal(t, dispatcher.StateIdle, app.controller.Status().State)
}

func TestBuildFailsOnMissingDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Records = config.BackendPostgres
	cfg.DB.DSN = ""

	app, err := build(context.Background(), cfg, nil, zap.NewNop())
	require.Error(t, err)
	require.Nil(t, app)
}

func TestCheckpointStoreSelection(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Checkpoint = config.BackendMemory
	app := &application{}
	store, err := newCheckpointStore(context.Background(), cfg, nil, app)
	require.NoError(t, err)
	require.IsType(t, &memory.CheckpointStore{}, store)
}

func TestBrowserFactoryColly(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Renderer.Kind = config.RendererColly
	browser, err := browserFactory(cfg, zap.NewNop())(context.Background())
	require.NoError(t, err)
	require.IsType(t, &static.Browser{}, browser)
	require.NoError(t, browser.Close())
}

func TestPacerInterval(t *testing.T) {
	t.Parallel()

	require.Equal(t, 500*time.Millisecond, pacerInterval(500*time.Millisecond))
	require.Negative(t, pacerInterval(0))
	require.Negative(t, pacerInterval(-time.Second))
}

func TestApplicationCloseRunsInReverse(t *testing.T) {
	t.Parallel()

	var order []int
	app := &application{}
	app.onClose(func() error { order = append(order, 1); return nil })
	app.onClose(func() error { order = append(order, 2); return nil })
	app.close(zap.NewNop())

	require.Equal(t, []int{2, 1}, order)
}

// Package local implements a filesystem-backed checkpoint store.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

// Config captures the parameters for the local checkpoint store.
type Config struct {
	// Path is the checkpoint file location.
	Path string `mapstructure:"checkpoint_path" yaml:"checkpoint_path"`
}

// CheckpointStore persists the crawl checkpoint as a JSON file.
type CheckpointStore struct {
	path string
}

// New creates a checkpoint store, creating the parent directory if needed.
func New(cfg Config) (*CheckpointStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	dir := filepath.Dir(cfg.Path)
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat checkpoint directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("checkpoint directory path is not a directory")
	}
	if info, err := os.Stat(cfg.Path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("checkpoint path %q is a directory", cfg.Path)
	}
	return &CheckpointStore{path: cfg.Path}, nil
}

// Path returns the checkpoint file location.
func (s *CheckpointStore) Path() string {
	return s.path
}

// Save writes the checkpoint atomically: a temp file in the same directory is
// synced and renamed over the previous checkpoint.
func (s *CheckpointStore) Save(_ context.Context, cp catalog.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint, returning nil when the file does not exist.
func (s *CheckpointStore) Load(_ context.Context) (*catalog.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	var cp catalog.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	return &cp, nil
}

// Clear deletes the checkpoint file if present.
func (s *CheckpointStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}

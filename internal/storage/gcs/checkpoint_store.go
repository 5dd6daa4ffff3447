// Package gcs provides a checkpoint store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

// DefaultObject is the object name used when Config.Object is empty.
const DefaultObject = "filament-catalog/checkpoint.json"

// Config captures the parameters required to locate the checkpoint object.
type Config struct {
	Bucket string
	Object string
}

// CheckpointStore keeps the crawl checkpoint in a single GCS object.
type CheckpointStore struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed checkpoint store.
func New(client *storage.Client, cfg Config) (*CheckpointStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	object := cfg.Object
	if object == "" {
		object = DefaultObject
	}
	return &CheckpointStore{
		client: client,
		bucket: cfg.Bucket,
		object: object,
	}, nil
}

// Save uploads the checkpoint, replacing the previous object. GCS object
// writes are atomic so readers never observe a partial document.
func (s *CheckpointStore) Save(ctx context.Context, cp catalog.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	writer := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write checkpoint: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Load downloads the checkpoint, returning nil when the object is absent.
func (s *CheckpointStore) Load(ctx context.Context) (*catalog.Checkpoint, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp catalog.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &cp, nil
}

// Clear deletes the checkpoint object if it exists.
func (s *CheckpointStore) Clear(ctx context.Context) error {
	err := s.client.Bucket(s.bucket).Object(s.object).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

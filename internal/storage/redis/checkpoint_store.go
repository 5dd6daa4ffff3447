// Package redis keeps the crawl checkpoint in a Redis key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

// DefaultKey is used when no key is configured.
const DefaultKey = "filament-catalog:checkpoint"

// Client is the subset of *goredis.Client the store uses.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// CheckpointStore persists the checkpoint document under a single key. A
// SET replaces the value atomically.
type CheckpointStore struct {
	client Client
	key    string
}

// New creates a Redis-backed checkpoint store.
func New(client Client, key string) (*CheckpointStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if key == "" {
		key = DefaultKey
	}
	return &CheckpointStore{client: client, key: key}, nil
}

// Dial opens a client for addr and verifies it with PING.
func Dial(ctx context.Context, addr string) (*goredis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// Save stores the checkpoint with no expiry.
func (s *CheckpointStore) Save(ctx context.Context, cp catalog.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load returns the stored checkpoint or nil when the key is absent.
func (s *CheckpointStore) Load(ctx context.Context) (*catalog.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	var cp catalog.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &cp, nil
}

// Clear deletes the key.
func (s *CheckpointStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// Package redis appends record-updated notifications to a Redis stream.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/notify"
)

// DefaultStream is used when no stream name is configured.
const DefaultStream = "filament-catalog:materials"

// StreamClient is the subset of *goredis.Client needed to publish.
type StreamClient interface {
	XAdd(ctx context.Context, args *goredis.XAddArgs) *goredis.StringCmd
}

// Publisher writes one stream entry per persisted record.
type Publisher struct {
	client StreamClient
	stream string
	closer func() error
	now    func() time.Time
}

// New creates a stream publisher. closer, when non-nil, runs on Close.
func New(client StreamClient, stream string, closer func() error) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{client: client, stream: stream, closer: closer, now: time.Now}, nil
}

// Publish appends rec to the stream.
func (p *Publisher) Publish(ctx context.Context, rec catalog.MaterialRecord) error {
	msg := notify.NewMessage(rec, p.now())
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal stream data: %w", err)
	}
	args := &goredis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"data":      string(data),
			"type":      msg.Type,
			"key":       rec.Key,
			"id":        strconv.FormatInt(rec.ID, 10),
			"timestamp": strconv.FormatInt(msg.Published.UnixNano(), 10),
		},
	}
	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

// Close releases the underlying client when owned.
func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

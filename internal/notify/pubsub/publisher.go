// Package pubsub publishes record-updated notifications to Google Cloud
// Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/notify"
)

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	now    func() time.Time
}

// Dial connects to projectID and binds topicID.
func Dial(ctx context.Context, projectID, topicID string) (*Publisher, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("notify.project_id and notify.topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return New(client, client.Topic(topicID)), nil
}

// New creates a Publisher for an existing topic. client may be nil when the
// caller owns it.
func New(client *pubsub.Client, topic *pubsub.Topic) *Publisher {
	return &Publisher{client: client, topic: topic, now: time.Now}
}

// Publish marshals rec and waits for the server to acknowledge it.
func (p *Publisher) Publish(ctx context.Context, rec catalog.MaterialRecord) error {
	if p.topic == nil {
		return fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(notify.NewMessage(rec, p.now()))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type": notify.EventRecordUpdated,
			"key":  rec.Key,
		},
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}

// Package memory contains an in-memory notifier for tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/notify"
)

// Publisher stores published messages for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []notify.Message
	closed   bool
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records a message for rec.
func (p *Publisher) Publish(_ context.Context, rec catalog.MaterialRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, notify.NewMessage(rec, time.Now()))
	return nil
}

// Close marks the publisher closed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Publisher) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []notify.Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]notify.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Discard is a notifier that drops every message.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(context.Context, catalog.MaterialRecord) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }

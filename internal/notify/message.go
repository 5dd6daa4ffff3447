// Package notify defines the record-updated payload shared by notifier
// backends.
package notify

import (
	"time"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

// EventRecordUpdated is the event type attached to every notification.
const EventRecordUpdated = "material.updated"

// Message is the JSON body published for each persisted record.
type Message struct {
	Type      string                 `json:"type"`
	Key       string                 `json:"key"`
	ID        int64                  `json:"id"`
	Record    catalog.MaterialRecord `json:"record"`
	Published time.Time              `json:"published_at"`
}

// NewMessage wraps rec in a record-updated message.
func NewMessage(rec catalog.MaterialRecord, now time.Time) Message {
	return Message{
		Type:      EventRecordUpdated,
		Key:       rec.Key,
		ID:        rec.ID,
		Record:    rec.Clone(),
		Published: now.UTC(),
	}
}

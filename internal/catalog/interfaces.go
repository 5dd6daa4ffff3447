package catalog

import (
	"context"
	"time"
)

// RecordStore owns MaterialRecord persistence and is the single writer of
// record state.
type RecordStore interface {
	Get(ctx context.Context, key string) (MaterialRecord, error)
	IsComplete(ctx context.Context, key string) (bool, error)
	// Upsert inserts the record when absent, otherwise merges it per Merge.
	// Tags are replaced in the same transaction. It returns the durable id.
	Upsert(ctx context.Context, key string, partial MaterialRecord, fullRefresh bool) (int64, error)
}

// RecordBrowser serves read-only catalogue queries.
type RecordBrowser interface {
	List(ctx context.Context, filter Filter) ([]MaterialRecord, error)
	Manufacturers(ctx context.Context) ([]string, error)
	MaterialTypes(ctx context.Context) ([]string, error)
}

// Catalog is a RecordStore that can also be browsed.
type Catalog interface {
	RecordStore
	RecordBrowser
}

// CheckpointStore is a durable single-slot checkpoint holder.
type CheckpointStore interface {
	// Save replaces any prior checkpoint.
	Save(ctx context.Context, cp Checkpoint) error
	// Load returns nil, nil when no checkpoint exists.
	Load(ctx context.Context) (*Checkpoint, error)
	// Clear removes the checkpoint; it is a no-op when none exists.
	Clear(ctx context.Context) error
}

// Browser is the page rendering facility used by discovery and the driver.
type Browser interface {
	OpenList(ctx context.Context) (ListPage, error)
	FetchPage(ctx context.Context, key string) (string, error)
	Close() error
}

// ListPage is a rendered list whose content grows when LoadMore is invoked.
type ListPage interface {
	HTML(ctx context.Context) (string, error)
	LoadMore(ctx context.Context) error
	Close() error
}

// Extractor turns one item page into a partial record.
type Extractor interface {
	Extract(key, html string) (MaterialRecord, error)
}

// LinkExtractor finds item-detail links in rendered list markup.
type LinkExtractor interface {
	ItemLinks(html string) ([]string, error)
}

// Notifier publishes record-updated notifications to downstream consumers.
type Notifier interface {
	Publish(ctx context.Context, rec MaterialRecord) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

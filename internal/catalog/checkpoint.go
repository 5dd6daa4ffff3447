package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the format of the checkpoint "timestamp" field. The
// value is always UTC; the layout itself carries no zone.
const TimestampLayout = "2006-01-02 15:04:05"

// Checkpoint is the durable snapshot that lets a paused crawl resume. Cursor
// is the index of the next key to process.
type Checkpoint struct {
	Keys      []string
	Cursor    int
	CreatedAt time.Time
}

// NewCheckpoint copies keys so later mutation by the caller cannot leak in.
// CreatedAt is stored in UTC at second precision.
func NewCheckpoint(keys []string, cursor int, now time.Time) Checkpoint {
	return Checkpoint{
		Keys:      append([]string(nil), keys...),
		Cursor:    cursor,
		CreatedAt: now.UTC().Truncate(time.Second),
	}
}

// Validate enforces 0 <= Cursor <= len(Keys).
func (c Checkpoint) Validate() error {
	if c.Cursor < 0 || c.Cursor > len(c.Keys) {
		return fmt.Errorf("%w: cursor %d outside [0,%d]", ErrInvalidCheckpoint, c.Cursor, len(c.Keys))
	}
	return nil
}

// Remaining returns the number of keys not yet processed.
func (c Checkpoint) Remaining() int {
	if c.Cursor >= len(c.Keys) {
		return 0
	}
	return len(c.Keys) - c.Cursor
}

type checkpointDoc struct {
	URLs      []string `json:"urls"`
	Index     int      `json:"index"`
	Timestamp string   `json:"timestamp"`
}

// MarshalJSON writes the {"urls","index","timestamp"} document.
func (c Checkpoint) MarshalJSON() ([]byte, error) {
	doc := checkpointDoc{
		URLs:  c.Keys,
		Index: c.Cursor,
	}
	if doc.URLs == nil {
		doc.URLs = []string{}
	}
	if !c.CreatedAt.IsZero() {
		doc.Timestamp = c.CreatedAt.Format(TimestampLayout)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the document written by MarshalJSON and validates it.
func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var doc checkpointDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}
	var created time.Time
	if doc.Timestamp != "" {
		ts, err := time.ParseInLocation(TimestampLayout, doc.Timestamp, time.UTC)
		if err != nil {
			return fmt.Errorf("decode checkpoint timestamp: %w", err)
		}
		created = ts
	}
	out := Checkpoint{Keys: doc.URLs, Cursor: doc.Index, CreatedAt: created}
	if err := out.Validate(); err != nil {
		return err
	}
	*c = out
	return nil
}

// Package progress defines the event structures emitted by the crawl driver.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart    Stage = "CRAWL_START"
	StageDiscoveryPoll Stage = "DISCOVERY_POLL"
	StageItemFetched   Stage = "ITEM_FETCHED"
	StageItemSkipped   Stage = "ITEM_SKIPPED"
	StageItemFailed    Stage = "ITEM_FAILED"
	StageCrawlDone     Stage = "CRAWL_DONE"
	StageCrawlPaused   Stage = "CRAWL_PAUSED"
	StageCrawlStopped  Stage = "CRAWL_STOPPED"
	StageCrawlFailed   Stage = "CRAWL_FAILED"
)

// Terminal reports whether the stage ends a crawl session.
func (s Stage) Terminal() bool {
	switch s {
	case StageCrawlDone, StageCrawlPaused, StageCrawlStopped, StageCrawlFailed:
		return true
	default:
		return false
	}
}

// Event captures a single component of crawl progress.
type Event struct {
	// SessionID identifies the crawl session using the 16-byte UUID form.
	SessionID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or item milestone occurred.
	Stage Stage
	// Key is the item key for item stages.
	Key string
	// Current is the cursor (items) or the discovered count (discovery polls).
	Current int64
	// Total is the size of the work list or the estimated collection size.
	Total int64
	// Dur is the fetch latency for items and the run time for terminal stages.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == [16]byte{} {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageDiscoveryPoll, StageCrawlDone, StageCrawlPaused, StageCrawlStopped, StageCrawlFailed:
	case StageItemFetched, StageItemSkipped, StageItemFailed:
		if e.Key == "" {
			return fmt.Errorf("%s requires key", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Current < 0 || e.Total < 0 {
		return errors.New("counters must be >= 0")
	}
	return nil
}

// SessionUUID converts the binary session ID to uuid.UUID for repositories.
func (e Event) SessionUUID() uuid.UUID {
	return uuid.UUID(e.SessionID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

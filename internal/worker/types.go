package worker

import (
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

// Command is a cooperative control request delivered to a running crawl.
type Command int

// Supported commands.
const (
	CommandPause Command = iota + 1
	CommandStop
)

func (c Command) String() string {
	switch c {
	case CommandPause:
		return "pause"
	case CommandStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Status is the terminal state of a crawl.
type Status string

// Terminal statuses.
const (
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Options selects the crawl mode.
type Options struct {
	// FullRefresh re-fetches every key and overwrites stored fields.
	FullRefresh bool `json:"full_refresh"`
	// Resume, when set, skips discovery and continues at its cursor.
	Resume *catalog.Checkpoint `json:"-"`
}

// Outcome summarises a finished crawl.
type Outcome struct {
	SessionID  uuid.UUID `json:"session_id"`
	Status     Status    `json:"status"`
	Fetched    int       `json:"fetched"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Cursor     int       `json:"cursor"`
	Total      int       `json:"total"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Diagnostic string    `json:"error,omitempty"`
	Err        error     `json:"-"`
}

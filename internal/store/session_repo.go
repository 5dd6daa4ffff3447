// Package store declares interfaces for persisting crawl session history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested session does not exist.
var ErrNotFound = errors.New("crawl session not found")

// SessionStatus mirrors the crawl_sessions status column.
type SessionStatus string

// Session statuses persisted in crawl_sessions.status.
const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionPaused    SessionStatus = "paused"
	SessionStopped   SessionStatus = "stopped"
	SessionFailed    SessionStatus = "failed"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionRunning, SessionCompleted, SessionPaused, SessionStopped, SessionFailed:
		return true
	default:
		return false
	}
}

// Session models one crawl run for API responses.
type Session struct {
	// ID is the crawl session identifier shared with progress events.
	ID uuid.UUID `json:"id"`
	// StartedAt captures when the session began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is nil while the session is running.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// Status is running/completed/paused/stopped/failed.
	Status SessionStatus `json:"status"`
	// Discovered is the largest key count seen during discovery.
	Discovered int64 `json:"discovered"`
	// Cursor is the highest item index reported so far.
	Cursor int64 `json:"cursor"`
	// Fetched, Skipped and Failed count per-item outcomes.
	Fetched int64 `json:"fetched"`
	Skipped int64 `json:"skipped"`
	Failed  int64 `json:"failed"`
	// ErrorMessage optionally stores the failure diagnostic.
	ErrorMessage *string `json:"error_message,omitempty"`
	// UpdatedAt is the timestamp of the latest applied delta.
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemDelta carries counter increments plus high-water marks for one flush.
type ItemDelta struct {
	Fetched    int64
	Skipped    int64
	Failed     int64
	Cursor     int64
	Discovered int64
}

// Empty reports whether applying d would change nothing.
func (d ItemDelta) Empty() bool {
	return d == ItemDelta{}
}

// SessionRepository persists crawl session history.
type SessionRepository interface {
	// StartSession inserts (or idempotently re-marks running) a session.
	StartSession(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	// ApplyDelta adds counters and raises cursor/discovered high-water marks.
	ApplyDelta(ctx context.Context, id uuid.UUID, delta ItemDelta, at time.Time) error
	// FinishSession records the terminal status and optional diagnostic.
	FinishSession(ctx context.Context, id uuid.UUID, finishedAt time.Time, status SessionStatus, errMsg *string) error

	// GetSession loads a single session or returns ErrNotFound.
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)
	// ListSessions returns sessions newest first, filtered by optional status.
	ListSessions(ctx context.Context, status *SessionStatus, limit, offset int) ([]Session, error)
}

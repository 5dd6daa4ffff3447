package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/filament-catalog/internal/store"
)

// SessionStore provides an in-memory store.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]store.Session
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]store.Session)}
}

// StartSession stores a running session, keeping counters of an existing one.
func (s *SessionStore) StartSession(_ context.Context, id uuid.UUID, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = store.Session{ID: id, StartedAt: startedAt.UTC()}
	}
	sess.Status = store.SessionRunning
	sess.FinishedAt = nil
	sess.UpdatedAt = startedAt.UTC()
	s.sessions[id] = sess
	return nil
}

// ApplyDelta adds counters to a session, creating it when unknown.
func (s *SessionStore) ApplyDelta(_ context.Context, id uuid.UUID, delta store.ItemDelta, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = store.Session{ID: id, StartedAt: at.UTC(), Status: store.SessionRunning}
	}
	sess.Fetched += delta.Fetched
	sess.Skipped += delta.Skipped
	sess.Failed += delta.Failed
	sess.Cursor = max(sess.Cursor, delta.Cursor)
	sess.Discovered = max(sess.Discovered, delta.Discovered)
	if at.After(sess.UpdatedAt) {
		sess.UpdatedAt = at.UTC()
	}
	s.sessions[id] = sess
	return nil
}

// FinishSession marks a session terminal.
func (s *SessionStore) FinishSession(
	_ context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status store.SessionStatus,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.Status = status
	sess.FinishedAt = pointerTime(finishedAt.UTC())
	sess.ErrorMessage = errMsg
	sess.UpdatedAt = finishedAt.UTC()
	s.sessions[id] = sess
	return nil
}

// GetSession fetches a session by ID.
func (s *SessionStore) GetSession(_ context.Context, id uuid.UUID) (store.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return sess, nil
}

// ListSessions returns sessions newest first.
func (s *SessionStore) ListSessions(
	_ context.Context,
	status *store.SessionStatus,
	limit, offset int,
) ([]store.Session, error) {
	s.mu.RLock()
	out := make([]store.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if status != nil && sess.Status != *status {
			continue
		}
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if offset > 0 {
		if offset >= len(out) {
			return []store.Session{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/filament-catalog/internal/store"
)

const sessionColumns = `id, started_at, finished_at, status, discovered, cursor_pos,
	fetched, skipped, failed, error_message, updated_at`

// SessionStore implements store.SessionRepository using Postgres.
type SessionStore struct {
	pool Pool
}

// NewSessionStore wraps an existing pool.
func NewSessionStore(pool Pool) (*SessionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SessionStore{pool: pool}, nil
}

// StartSession inserts a running session or re-marks an existing one running.
func (s *SessionStore) StartSession(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	query := `
		INSERT INTO crawl_sessions (id, started_at, status, updated_at)
		VALUES ($1, $2, $3, $2)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, finished_at = NULL
		WHERE crawl_sessions.status <> EXCLUDED.status;
	`
	if _, err := s.pool.Exec(ctx, query, id, startedAt, string(store.SessionRunning)); err != nil {
		return fmt.Errorf("failed to upsert session start: %w", err)
	}
	return nil
}

// ApplyDelta adds counters to a session, inserting the row when missing.
func (s *SessionStore) ApplyDelta(ctx context.Context, id uuid.UUID, delta store.ItemDelta, at time.Time) error {
	query := `
		UPDATE crawl_sessions SET
			fetched = fetched + $1,
			skipped = skipped + $2,
			failed = failed + $3,
			cursor_pos = GREATEST(cursor_pos, $4),
			discovered = GREATEST(discovered, $5),
			updated_at = GREATEST(updated_at, $6)
		WHERE id = $7;
	`
	res, err := s.pool.Exec(ctx, query,
		delta.Fetched, delta.Skipped, delta.Failed, delta.Cursor, delta.Discovered, at, id)
	if err != nil {
		return fmt.Errorf("failed to apply session delta: %w", err)
	}
	if res.RowsAffected() > 0 {
		return nil
	}
	query = `
		INSERT INTO crawl_sessions (
			id, started_at, status, discovered, cursor_pos, fetched, skipped, failed, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $2)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err = s.pool.Exec(ctx, query,
		id, at, string(store.SessionRunning),
		delta.Discovered, delta.Cursor, delta.Fetched, delta.Skipped, delta.Failed)
	if err != nil {
		return fmt.Errorf("failed to insert session delta: %w", err)
	}
	return nil
}

// FinishSession records the terminal status of a session.
func (s *SessionStore) FinishSession(
	ctx context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status store.SessionStatus,
	errMsg *string,
) error {
	if !status.Valid() {
		return fmt.Errorf("invalid session status %q", status)
	}
	query := `
		UPDATE crawl_sessions
		SET finished_at = $1, status = $2, error_message = $3, updated_at = $1
		WHERE id = $4;
	`
	res, err := s.pool.Exec(ctx, query, finishedAt, string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetSession retrieves a single session by its ID.
func (s *SessionStore) GetSession(ctx context.Context, id uuid.UUID) (store.Session, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM crawl_sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrNotFound
		}
		return store.Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions newest first with optional status filtering.
func (s *SessionStore) ListSessions(
	ctx context.Context,
	status *store.SessionStatus,
	limit,
	offset int,
) ([]store.Session, error) {
	var statusArg *string
	if status != nil {
		v := string(*status)
		statusArg = &v
	}
	query := `SELECT ` + sessionColumns + `
		FROM crawl_sessions
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;`
	rows, err := s.pool.Query(ctx, query, statusArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]store.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row pgx.Row) (store.Session, error) {
	var (
		sess   store.Session
		status string
	)
	err := row.Scan(
		&sess.ID,
		&sess.StartedAt,
		&sess.FinishedAt,
		&status,
		&sess.Discovered,
		&sess.Cursor,
		&sess.Fetched,
		&sess.Skipped,
		&sess.Failed,
		&sess.ErrorMessage,
		&sess.UpdatedAt,
	)
	if err != nil {
		return store.Session{}, err
	}
	sess.Status = store.SessionStatus(status)
	return sess, nil
}

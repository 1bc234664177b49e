package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danmaku/live-comments/internal/session"
)

// SessionStore archives completed viewer sessions for watch-time analytics.
// It implements pipeline.HistoryRepo.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a SessionStore backed by the given database handle.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// RecordViewerSession inserts one completed session record.
func (s *SessionStore) RecordViewerSession(ctx context.Context, streamID string, rec session.Record) error {
	const query = `
		INSERT INTO viewer_sessions (stream_id, viewer, joined_at, left_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		streamID, rec.Viewer, rec.JoinedAt, rec.LeftAt, rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("storage: record viewer session: %w", err)
	}
	return nil
}

// TotalWatchTime returns the summed duration of archived sessions for a
// stream within the given window.
func (s *SessionStore) TotalWatchTime(ctx context.Context, streamID string, window time.Duration) (time.Duration, error) {
	const query = `
		SELECT COALESCE(SUM(duration_ms), 0)
		FROM viewer_sessions
		WHERE stream_id = $1
		  AND left_at >= NOW() - $2::interval`

	var totalMs sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, streamID, window.String()).Scan(&totalMs)
	if err != nil {
		return 0, fmt.Errorf("storage: total watch time: %w", err)
	}
	return time.Duration(totalMs.Int64) * time.Millisecond, nil
}

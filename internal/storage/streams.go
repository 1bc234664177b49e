package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danmaku/live-comments/internal/pipeline"
)

// StreamStore reads stream permission snapshots. It implements
// pipeline.StreamRepo; the pipeline re-fetches the snapshot on every
// submission, so this path stays a single indexed row lookup.
type StreamStore struct {
	db *sql.DB
}

// NewStreamStore creates a StreamStore backed by the given database handle.
func NewStreamStore(db *sql.DB) *StreamStore {
	return &StreamStore{db: db}
}

// FindStreamByID returns the stream's permission snapshot, or (nil, nil)
// when the stream does not exist.
func (s *StreamStore) FindStreamByID(ctx context.Context, id string) (*pipeline.StreamSnapshot, error) {
	const query = `
		SELECT id, status, allow_comments, allow_anonymous, comment_cooldown_ms, max_comment_length
		FROM streams
		WHERE id = $1`

	var (
		snap       pipeline.StreamSnapshot
		cooldownMs int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&snap.ID,
		&snap.Status,
		&snap.AllowComments,
		&snap.AllowAnonymous,
		&cooldownMs,
		&snap.MaxCommentLength,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: find stream %s: %w", id, err)
	}

	snap.CommentCooldown = time.Duration(cooldownMs) * time.Millisecond
	return &snap, nil
}

// SetStatus updates a stream's lifecycle status. Used by the stream owner
// paths (go live / end stream).
func (s *StreamStore) SetStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE streams SET status = $2, updated_at = NOW() WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("storage: set stream status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: stream %s not found", id)
	}
	return nil
}

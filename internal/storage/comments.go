package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/danmaku/live-comments/internal/comment"
)

// CommentStore persists accepted comments. It implements
// pipeline.CommentRepo.
type CommentStore struct {
	db *sql.DB
}

// NewCommentStore creates a CommentStore backed by the given database handle.
func NewCommentStore(db *sql.DB) *CommentStore {
	return &CommentStore{db: db}
}

// SaveComment inserts the comment and returns it with its assigned id. The
// input comment is not mutated.
func (s *CommentStore) SaveComment(ctx context.Context, c *comment.Comment) (*comment.Comment, error) {
	const query = `
		INSERT INTO comments
			(id, stream_id, user_id, username, text, command,
			 position, color, size, lane, x, y, speed, duration_ms, vpos_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	saved := *c
	saved.ID = uuid.New().String()

	var userID sql.NullString
	if c.UserID != "" {
		userID = sql.NullString{String: c.UserID, Valid: true}
	}
	var command sql.NullString
	if c.Command != "" {
		command = sql.NullString{String: c.Command, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		saved.ID, c.StreamID, userID, c.Username, c.Text, command,
		string(c.Style.Position), c.Style.Color, string(c.Style.Size),
		c.Lane, c.X, c.Y, c.Speed, c.Duration, c.Vpos, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: save comment: %w", err)
	}
	return &saved, nil
}

// ListRecent returns the stream's most recent comments in chronological
// order (oldest first), used to replay the overlay for late joiners.
func (s *CommentStore) ListRecent(ctx context.Context, streamID string, limit int) ([]*comment.Comment, error) {
	const query = `
		SELECT id, stream_id, user_id, username, text, command,
		       position, color, size, lane, x, y, speed, duration_ms, vpos_ms, created_at
		FROM comments
		WHERE stream_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, streamID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list recent comments: %w", err)
	}
	defer rows.Close()

	var out []*comment.Comment
	for rows.Next() {
		var (
			c        comment.Comment
			userID   sql.NullString
			command  sql.NullString
			position string
			size     string
		)
		err := rows.Scan(
			&c.ID, &c.StreamID, &userID, &c.Username, &c.Text, &command,
			&position, &c.Style.Color, &size,
			&c.Lane, &c.X, &c.Y, &c.Speed, &c.Duration, &c.Vpos, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("storage: scan comment: %w", err)
		}
		c.UserID = userID.String
		c.Command = command.String
		c.Style.Position = comment.Position(position)
		c.Style.Size = comment.Size(size)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list recent comments: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

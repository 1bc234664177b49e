// Package comment defines the danmaku comment value type, its display style,
// and the validation/sanitization rules applied to user-submitted text before
// a comment is scheduled onto the overlay.
package comment

import "time"

// Position is where a comment is rendered on the overlay.
type Position string

const (
	PositionScroll Position = "scroll" // flies right-to-left across the video
	PositionTop    Position = "top"    // pinned to the top, centered
	PositionBottom Position = "bottom" // pinned to the bottom, centered
)

// Size is the comment font size bucket.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeBig    Size = "big"
)

// Style is the resolved display style for a comment, produced by parsing the
// raw inline command string.
type Style struct {
	Position Position `json:"position"`
	Color    string   `json:"color"` // hex, e.g. "#FFFFFF"
	Size     Size     `json:"size"`
}

// DefaultStyle returns the style applied when no command tokens override it.
func DefaultStyle() Style {
	return Style{
		Position: PositionScroll,
		Color:    "#FFFFFF",
		Size:     SizeMedium,
	}
}

// Comment is an immutable broadcast-ready comment record. It is constructed
// by the pipeline after validation, moderation and lane assignment, persisted
// once, and fanned out to every viewer of the stream exactly once.
type Comment struct {
	ID        string    `json:"id"`
	StreamID  string    `json:"stream_id"`
	UserID    string    `json:"user_id,omitempty"` // empty = anonymous
	Username  string    `json:"username"`
	Text      string    `json:"text"`              // sanitized
	Command   string    `json:"command,omitempty"` // raw style command as submitted
	Style     Style     `json:"style"`
	Lane      int       `json:"lane"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Speed     float64   `json:"speed"`    // px/s, 0 for pinned positions
	Duration  int64     `json:"duration"` // ms on screen
	Vpos      int64     `json:"vpos"`     // stream-relative timestamp, ms
	CreatedAt time.Time `json:"created_at"`
}

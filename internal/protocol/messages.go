// Package protocol defines the WebSocket message types and structures used for
// communication between the viewer client and the comment server. All messages
// are serialized as JSON and follow a consistent envelope format with a type
// discriminator.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/danmaku/live-comments/internal/comment"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeJoinStream  = "join_stream"
	TypeLeaveStream = "leave_stream"
	TypeComment     = "comment"
	TypePing        = "ping"
)

// Server -> Client message types.
const (
	TypeStreamJoined = "stream_joined"
	TypeStreamEnded  = "stream_ended"
	TypeNewComment   = "new_comment"
	TypeCommentSent  = "comment_sent"
	TypeViewerCount  = "viewer_count"
	TypeError        = "error"
	TypePong         = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// JoinStreamMsg is sent by the client to start watching a stream.
type JoinStreamMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// LeaveStreamMsg is sent by the client to stop watching a stream.
type LeaveStreamMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// CommentMsg is sent by the client to submit a comment on a stream. Vpos is
// the client's playback position in milliseconds.
type CommentMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Text     string `json:"text"`
	Command  string `json:"command,omitempty"`
	Vpos     int64  `json:"vpos"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// StreamJoinedMsg confirms a join and carries the current viewer count plus
// the stream's recent comments for overlay replay.
type StreamJoinedMsg struct {
	Type        string             `json:"type"`
	StreamID    string             `json:"stream_id"`
	ViewerCount int                `json:"viewer_count"`
	Recent      []*comment.Comment `json:"recent,omitempty"`
}

// StreamEndedMsg tells viewers the stream is over.
type StreamEndedMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// NewCommentMsg carries an accepted comment to every viewer of the stream,
// including the sender.
type NewCommentMsg struct {
	Type     string           `json:"type"`
	StreamID string           `json:"stream_id"`
	Comment  *comment.Comment `json:"comment"`
}

// CommentSentMsg is the server's acknowledgement of a comment submission.
// On success only CommentID is set; on rejection Code and Reason describe
// why, Errors carries validation details, and RetryAfter (seconds) is set
// for rate limit rejections.
type CommentSentMsg struct {
	Type       string   `json:"type"`
	Success    bool     `json:"success"`
	CommentID  string   `json:"comment_id,omitempty"`
	Code       string   `json:"code,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	RetryAfter int      `json:"retry_after,omitempty"`
}

// ViewerCountMsg carries the stream's current viewer count.
type ViewerCountMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Count    int    `json:"count"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeJoinStream:
		var m JoinStreamMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveStream:
		var m LeaveStreamMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeComment:
		var m CommentMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}

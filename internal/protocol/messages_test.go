package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid comment message
// ---------------------------------------------------------------------------

func TestParseClientMessage_Comment(t *testing.T) {
	input := []byte(`{"type":"comment","stream_id":"s1","text":"nice goal","command":"ue red","vpos":120500}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeComment {
		t.Fatalf("expected type %q, got %q", TypeComment, msgType)
	}

	cm, ok := msg.(CommentMsg)
	if !ok {
		t.Fatalf("expected CommentMsg, got %T", msg)
	}
	if cm.StreamID != "s1" {
		t.Errorf("expected stream_id %q, got %q", "s1", cm.StreamID)
	}
	if cm.Text != "nice goal" {
		t.Errorf("expected text %q, got %q", "nice goal", cm.Text)
	}
	if cm.Command != "ue red" {
		t.Errorf("expected command %q, got %q", "ue red", cm.Command)
	}
	if cm.Vpos != 120500 {
		t.Errorf("expected vpos 120500, got %d", cm.Vpos)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a join_stream message
// ---------------------------------------------------------------------------

func TestParseClientMessage_JoinStream(t *testing.T) {
	input := []byte(`{"type":"join_stream","stream_id":"s-42"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeJoinStream {
		t.Fatalf("expected type %q, got %q", TypeJoinStream, msgType)
	}

	jm, ok := msg.(JoinStreamMsg)
	if !ok {
		t.Fatalf("expected JoinStreamMsg, got %T", msg)
	}
	if jm.StreamID != "s-42" {
		t.Errorf("expected stream_id %q, got %q", "s-42", jm.StreamID)
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a comment_sent server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_CommentSent(t *testing.T) {
	payload := CommentSentMsg{
		Success:    false,
		Code:       "rate_limited",
		Reason:     "too many comments",
		RetryAfter: 42,
	}

	data, err := NewServerMessage(TypeCommentSent, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Decode back and verify structure.
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeCommentSent {
		t.Errorf("expected type %q, got %v", TypeCommentSent, result["type"])
	}
	if result["success"] != false {
		t.Errorf("expected success false, got %v", result["success"])
	}
	if result["code"] != "rate_limited" {
		t.Errorf("expected code %q, got %v", "rate_limited", result["code"])
	}

	retryAfter, ok := result["retry_after"].(float64)
	if !ok {
		t.Fatalf("expected retry_after to be a number, got %T", result["retry_after"])
	}
	if int(retryAfter) != 42 {
		t.Errorf("expected retry_after 42, got %v", retryAfter)
	}
}

// ---------------------------------------------------------------------------
// Test: Successful ack omits rejection fields
// ---------------------------------------------------------------------------

func TestNewServerMessage_CommentSentSuccess(t *testing.T) {
	payload := CommentSentMsg{
		Success:   true,
		CommentID: "c-1",
	}

	data, err := NewServerMessage(TypeCommentSent, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["success"] != true {
		t.Errorf("expected success true, got %v", result["success"])
	}
	if result["comment_id"] != "c-1" {
		t.Errorf("expected comment_id %q, got %v", "c-1", result["comment_id"])
	}
	for _, field := range []string{"code", "reason", "errors", "retry_after"} {
		if _, present := result[field]; present {
			t.Errorf("expected %q to be omitted on success, got %v", field, result[field])
		}
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing an unknown message type returns an error
// ---------------------------------------------------------------------------

func TestParseClientMessage_UnknownType(t *testing.T) {
	input := []byte(`{"type":"unknown_type","data":"something"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected an error for unknown message type, got nil")
	}
	if msg != nil {
		t.Errorf("expected nil message for unknown type, got %v", msg)
	}
	if msgType != "unknown_type" {
		t.Errorf("expected returned type %q, got %q", "unknown_type", msgType)
	}
}

// ---------------------------------------------------------------------------
// Test: Server-only types are rejected as client input
// ---------------------------------------------------------------------------

func TestParseClientMessage_ServerOnlyType(t *testing.T) {
	input := []byte(`{"type":"viewer_count","stream_id":"s1","count":99}`)

	_, msg, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected an error for server-only message type, got nil")
	}
	if msg != nil {
		t.Errorf("expected nil message, got %v", msg)
	}
}

// ---------------------------------------------------------------------------
// Test: Envelope UnmarshalJSON edge cases
// ---------------------------------------------------------------------------

func TestEnvelope_MissingType(t *testing.T) {
	input := []byte(`{"data":"no type field"}`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err == nil {
		t.Fatal("expected error for missing type field, got nil")
	}
}

func TestEnvelope_InvalidJSON(t *testing.T) {
	input := []byte(`{invalid json}`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing all client message types succeeds
// ---------------------------------------------------------------------------

func TestParseClientMessage_AllTypes(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantType string
	}{
		{"join_stream", `{"type":"join_stream","stream_id":"s1"}`, TypeJoinStream},
		{"leave_stream", `{"type":"leave_stream","stream_id":"s1"}`, TypeLeaveStream},
		{"comment", `{"type":"comment","stream_id":"s1","text":"hi","vpos":0}`, TypeComment},
		{"ping", `{"type":"ping"}`, TypePing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msgType, msg, err := ParseClientMessage([]byte(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msgType != tc.wantType {
				t.Errorf("expected type %q, got %q", tc.wantType, msgType)
			}
			if msg == nil {
				t.Error("expected non-nil message")
			}
		})
	}
}

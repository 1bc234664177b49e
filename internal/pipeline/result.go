package pipeline

import (
	"time"

	"github.com/danmaku/live-comments/internal/comment"
	"github.com/danmaku/live-comments/internal/moderation"
)

// Rejection codes, one per branch of the error taxonomy. Rejections are
// normal return values: callers must not auto-retry a rejected comment.
const (
	RejectNotFound         = "not_found"          // stream missing or not live
	RejectPermissionDenied = "permission_denied"  // forbidden by stream settings
	RejectRateLimited      = "rate_limited"       // flood protection, retry after window
	RejectModeration       = "moderation_rejected" // content rejected by the engine
	RejectValidation       = "validation_failed"  // structural rules violated
)

// Rejection describes why a submission was refused.
type Rejection struct {
	Code       string              `json:"code"`
	Reason     string              `json:"reason"`
	Severity   moderation.Severity `json:"severity,omitempty"`
	Errors     []string            `json:"errors,omitempty"`      // validation rule list
	RetryAfter time.Duration       `json:"retry_after,omitempty"` // hint for rate limits
}

// SubmitRequest is the pre-authenticated tuple delivered by the transport
// layer for one comment submission.
type SubmitRequest struct {
	UserID   string // empty = anonymous
	Username string
	StreamID string
	Text     string
	Command  string
	Vpos     int64 // stream-relative timestamp, ms
}

// SubmitResult is the single outcome of a submission: exactly one of Comment
// (accepted) or Rejection is set.
type SubmitResult struct {
	Accepted  bool
	Comment   *comment.Comment
	Rejection *Rejection
}

func rejected(rej Rejection) *SubmitResult {
	return &SubmitResult{Rejection: &rej}
}

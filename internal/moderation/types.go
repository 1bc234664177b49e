package moderation

// Severity grades a moderation finding and drives violation escalation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Reason codes returned by the engine. Each check produces a distinct code
// so clients and metrics can tell rejections apart.
const (
	ReasonUserBlocked = "user blocked"
	ReasonBannedWord  = "banned word"
	ReasonSpamPattern = "spam pattern"
	ReasonDuplicate   = "duplicate message"
)

// Result is the outcome of a moderation pass over one comment.
type Result struct {
	Allowed  bool
	Reason   string   // reason code when not allowed
	Severity Severity // severity of the finding when not allowed
	Detail   string   // matched term or pattern name, for logging
}

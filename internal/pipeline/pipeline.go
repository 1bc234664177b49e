// Package pipeline composes validation, moderation, lane scheduling and
// session bookkeeping into the live comment pipeline: every submission runs
// the gates in fixed order and yields exactly one of accepted or
// rejected-with-reason. Only infrastructure failures surface as errors.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/danmaku/live-comments/internal/comment"
	"github.com/danmaku/live-comments/internal/lane"
	"github.com/danmaku/live-comments/internal/metrics"
	"github.com/danmaku/live-comments/internal/moderation"
	"github.com/danmaku/live-comments/internal/session"
)

// Stream status values from the permission snapshot.
const (
	StreamWaiting = "waiting"
	StreamLive    = "live"
	StreamEnded   = "ended"
)

// StreamSnapshot is the pipeline's read-only view of a stream's permission
// settings. It is re-fetched on every submission and never cached beyond
// function scope.
type StreamSnapshot struct {
	ID               string
	Status           string
	AllowComments    bool
	AllowAnonymous   bool
	CommentCooldown  time.Duration
	MaxCommentLength int // 0 = use the validator default
}

// StreamRepo looks up stream permission snapshots. A missing stream is
// (nil, nil), not an error.
type StreamRepo interface {
	FindStreamByID(ctx context.Context, id string) (*StreamSnapshot, error)
}

// CommentRepo persists accepted comments. SaveComment assigns the id and
// must complete before the comment is broadcast.
type CommentRepo interface {
	SaveComment(ctx context.Context, c *comment.Comment) (*comment.Comment, error)
}

// HistoryRepo archives completed viewer sessions. Best-effort; failures are
// logged, never surfaced to the viewer.
type HistoryRepo interface {
	RecordViewerSession(ctx context.Context, streamID string, rec session.Record) error
}

// Broadcaster fans pipeline output out to every subscriber of a room.
type Broadcaster interface {
	BroadcastComment(streamID string, c *comment.Comment) error
	BroadcastViewerCount(streamID string, count int) error
}

// Config holds the overlay geometry used to derive scroll kinematics.
type Config struct {
	ScreenWidth float64 // overlay width in px
}

// DefaultConfig returns the standard overlay geometry.
func DefaultConfig() Config {
	return Config{ScreenWidth: 640}
}

// charWidths is the approximate glyph width per size bucket, used to size
// the comment for speed and centering computations.
var charWidths = map[comment.Size]float64{
	comment.SizeSmall:  16,
	comment.SizeMedium: 24,
	comment.SizeBig:    36,
}

// Pipeline is the orchestrator for comment submissions and viewer presence.
type Pipeline struct {
	config    Config
	validator *comment.Validator
	engine    *moderation.Engine
	lanes     *lane.Registry
	sessions  *session.Registry
	streams   StreamRepo
	comments  CommentRepo
	history   HistoryRepo // may be nil
	bus       Broadcaster

	now func() time.Time // injectable for tests
}

// New wires a Pipeline from its collaborators. history may be nil when
// session archiving is disabled.
func New(
	config Config,
	validator *comment.Validator,
	engine *moderation.Engine,
	lanes *lane.Registry,
	sessions *session.Registry,
	streams StreamRepo,
	comments CommentRepo,
	history HistoryRepo,
	bus Broadcaster,
) *Pipeline {
	if config.ScreenWidth <= 0 {
		config.ScreenWidth = DefaultConfig().ScreenWidth
	}
	return &Pipeline{
		config:    config,
		validator: validator,
		engine:    engine,
		lanes:     lanes,
		sessions:  sessions,
		streams:   streams,
		comments:  comments,
		history:   history,
		bus:       bus,
		now:       time.Now,
	}
}

// SubmitComment runs one submission through the gates. The gate order is
// fixed; later gates assume earlier ones passed. The returned error is
// non-nil only for infrastructure failures (persistence or stream lookup),
// which the transport layer converts into a generic error event.
func (p *Pipeline) SubmitComment(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	start := p.now()
	res, err := p.submit(ctx, req, start)
	if err != nil {
		return nil, err
	}

	metrics.SubmitLatency.Observe(p.now().Sub(start).Seconds())
	if res.Accepted {
		metrics.CommentsTotal.WithLabelValues("accepted").Inc()
	} else {
		metrics.CommentsTotal.WithLabelValues("rejected").Inc()
		metrics.RejectionsTotal.WithLabelValues(res.Rejection.Code).Inc()
	}
	return res, nil
}

func (p *Pipeline) submit(ctx context.Context, req SubmitRequest, now time.Time) (*SubmitResult, error) {
	// Gate 1: the stream must exist and be live.
	snap, err := p.streams.FindStreamByID(ctx, req.StreamID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: stream lookup: %w", err)
	}
	if snap == nil {
		return rejected(Rejection{Code: RejectNotFound, Reason: "stream not found"}), nil
	}
	if snap.Status != StreamLive {
		return rejected(Rejection{Code: RejectNotFound, Reason: "stream not live"}), nil
	}

	// Gate 2: stream-level comment permissions.
	if !snap.AllowComments {
		return rejected(Rejection{Code: RejectPermissionDenied, Reason: "comments disabled"}), nil
	}
	if req.UserID == "" && !snap.AllowAnonymous {
		return rejected(Rejection{Code: RejectPermissionDenied, Reason: "anonymous comments not allowed"}), nil
	}

	// Gate 3: flood protection, authenticated users only.
	if req.UserID != "" {
		allowed, retryAfter := p.sessions.CheckRateLimit(req.StreamID, req.UserID, now)
		if !allowed {
			return rejected(Rejection{
				Code:       RejectRateLimited,
				Reason:     "rate limited",
				RetryAfter: retryAfter,
			}), nil
		}
		if !p.sessions.CheckCooldown(req.StreamID, req.UserID, now, snap.CommentCooldown) {
			return rejected(Rejection{
				Code:       RejectRateLimited,
				Reason:     "comment cooldown",
				RetryAfter: snap.CommentCooldown,
			}), nil
		}
	}

	// Gate 4: content moderation.
	if mres := p.engine.Moderate(ctx, req.Text, req.UserID, req.StreamID, now); !mres.Allowed {
		return rejected(Rejection{
			Code:     RejectModeration,
			Reason:   mres.Reason,
			Severity: mres.Severity,
		}), nil
	}

	// Gate 5: structural validation of the sanitized text and the command.
	text := p.validator.Sanitize(req.Text)
	vres := p.validator.Validate(text)
	if snap.MaxCommentLength > 0 && utf8.RuneCountInString(text) > snap.MaxCommentLength {
		vres.Valid = false
		vres.Errors = append(vres.Errors,
			fmt.Sprintf("comment exceeds stream limit of %d characters", snap.MaxCommentLength))
	}
	if !comment.IsValidCommand(req.Command) {
		vres.Valid = false
		vres.Errors = append(vres.Errors, "invalid style command")
	}
	if !vres.Valid {
		return rejected(Rejection{
			Code:   RejectValidation,
			Reason: "validation failed",
			Errors: vres.Errors,
		}), nil
	}

	// Gates passed: build the comment and place it on the overlay. The lane
	// assignment holds only the scheduler's own per-stream lock; persistence
	// and broadcast below run without any lock held.
	style := comment.ParseCommand(req.Command)
	scheduler := p.lanes.ForStream(req.StreamID)
	assignment := scheduler.AssignLane(now)
	duration := scheduler.Duration()

	c := &comment.Comment{
		StreamID:  req.StreamID,
		UserID:    req.UserID,
		Username:  req.Username,
		Text:      text,
		Command:   req.Command,
		Style:     style,
		Lane:      assignment.Lane,
		Y:         assignment.Y,
		Duration:  duration.Milliseconds(),
		Vpos:      req.Vpos,
		CreatedAt: now,
	}
	p.applyKinematics(c, duration)

	saved, err := p.comments.SaveComment(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("pipeline: save comment: %w", err)
	}

	if req.UserID != "" {
		p.sessions.MarkComment(req.StreamID, req.UserID, now)
	}

	if err := p.bus.BroadcastComment(req.StreamID, saved); err != nil {
		// The comment is persisted; a broadcast hiccup must not turn an
		// accepted submission into a failure.
		log.Printf("[pipeline] broadcast comment stream=%s: %v", req.StreamID, err)
	}

	return &SubmitResult{Accepted: true, Comment: saved}, nil
}

// applyKinematics sets x and speed from the comment's style and text width.
// Scroll comments enter at the right edge and cross the full overlay within
// their on-screen duration; pinned comments are centered and static.
func (p *Pipeline) applyKinematics(c *comment.Comment, duration time.Duration) {
	textWidth := float64(utf8.RuneCountInString(c.Text)) * charWidths[c.Style.Size]

	if c.Style.Position == comment.PositionScroll {
		c.X = p.config.ScreenWidth
		c.Speed = (p.config.ScreenWidth + textWidth) / duration.Seconds()
		return
	}

	x := (p.config.ScreenWidth - textWidth) / 2
	if x < 0 {
		x = 0
	}
	c.X = x
	c.Speed = 0
}

// viewerKey identifies a viewer for presence tracking: the user id when
// authenticated, otherwise the connection id.
func viewerKey(userID, connID string) string {
	if userID != "" {
		return userID
	}
	return "anon:" + connID
}

// ViewerJoin registers a viewer on a stream and broadcasts the updated
// count. Returns the new viewer count.
func (p *Pipeline) ViewerJoin(ctx context.Context, streamID, userID, connID string) int {
	p.sessions.Join(streamID, viewerKey(userID, connID), p.now())
	metrics.ViewersTotal.Inc()

	count := p.sessions.ViewerCount(streamID)
	if err := p.bus.BroadcastViewerCount(streamID, count); err != nil {
		log.Printf("[pipeline] broadcast viewer count stream=%s: %v", streamID, err)
	}
	return count
}

// ViewerLeave removes a viewer, archives the completed session, and
// broadcasts the updated count. Returns the new viewer count.
func (p *Pipeline) ViewerLeave(ctx context.Context, streamID, userID, connID string) int {
	key := viewerKey(userID, connID)
	now := p.now()

	duration, ok := p.sessions.Leave(streamID, key, now)
	if ok {
		metrics.ViewersTotal.Dec()
		if p.history != nil {
			rec := session.Record{
				Viewer:   key,
				JoinedAt: now.Add(-duration),
				LeftAt:   now,
				Duration: duration,
			}
			if err := p.history.RecordViewerSession(ctx, streamID, rec); err != nil {
				log.Printf("[pipeline] archive session stream=%s viewer=%s: %v", streamID, key, err)
			}
		}
	}

	count := p.sessions.ViewerCount(streamID)
	if err := p.bus.BroadcastViewerCount(streamID, count); err != nil {
		log.Printf("[pipeline] broadcast viewer count stream=%s: %v", streamID, err)
	}
	return count
}

// StreamEnded releases every per-stream resource: lane scheduler, session
// shard, and moderation history buffers.
func (p *Pipeline) StreamEnded(streamID string) {
	p.lanes.Remove(streamID)
	p.sessions.EndStream(streamID)
	p.engine.History().DropStream(streamID)
}

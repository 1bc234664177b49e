package moderation

import (
	"context"
	"log"
	"time"
)

// Ledger is the engine's view of the violation store. Implemented by
// violation.Tracker; tests supply a fake.
type Ledger interface {
	// IsBlocked reports whether the user is currently blocked and for how
	// much longer.
	IsBlocked(ctx context.Context, userID string) (bool, time.Duration, error)

	// Record adds a violation of the given severity and returns whether the
	// user crossed the auto-block threshold, with the applied duration.
	Record(ctx context.Context, userID string, severity string) (bool, time.Duration, error)
}

// Engine runs the ordered moderation checks for one comment. Checks
// short-circuit at the first failure; every rejection for an authenticated
// user is recorded to the violation ledger. Anonymous users accumulate no
// violations and cannot be blocked.
type Engine struct {
	filter              *Filter
	history             *History
	ledger              Ledger
	similarityThreshold float64
}

// NewEngine creates an Engine with the given collaborators. A threshold of 0
// selects DefaultSimilarityThreshold.
func NewEngine(filter *Filter, history *History, ledger Ledger, similarityThreshold float64) *Engine {
	if similarityThreshold <= 0 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	return &Engine{
		filter:              filter,
		history:             history,
		ledger:              ledger,
		similarityThreshold: similarityThreshold,
	}
}

// History exposes the engine's recent-message store so the stream lifecycle
// can drop buffers when a stream ends.
func (e *Engine) History() *History {
	return e.history
}

// Moderate screens one comment. userID is empty for anonymous viewers.
//
// Check order is fixed: blocked user, banned words, spam patterns, then
// near-duplicate against the user's recent messages on this stream. On
// allow, the message is appended to that history.
func (e *Engine) Moderate(ctx context.Context, text, userID, streamID string, now time.Time) Result {
	if userID != "" {
		blocked, _, err := e.ledger.IsBlocked(ctx, userID)
		if err != nil {
			// Fail open: a ledger outage must not freeze every chat room.
			log.Printf("[moderation] IsBlocked user=%s: %v (failing open)", userID, err)
		} else if blocked {
			return Result{Reason: ReasonUserBlocked, Severity: SeverityHigh}
		}
	}

	if fr := e.filter.Check(text); fr.Blocked {
		return e.reject(ctx, userID, Result{
			Reason:   ReasonBannedWord,
			Severity: SeverityMedium,
			Detail:   fr.Term,
		})
	}

	if name := checkSpamPatterns(text); name != "" {
		return e.reject(ctx, userID, Result{
			Reason:   ReasonSpamPattern,
			Severity: SeverityLow,
			Detail:   name,
		})
	}

	if userID != "" {
		for _, prev := range e.history.Recent(userID, streamID, now) {
			if Similarity(text, prev) > e.similarityThreshold {
				return e.reject(ctx, userID, Result{
					Reason:   ReasonDuplicate,
					Severity: SeverityLow,
				})
			}
		}
		e.history.Add(userID, streamID, text, now)
	}

	return Result{Allowed: true}
}

// reject records the violation for authenticated users and returns the
// finding unchanged.
func (e *Engine) reject(ctx context.Context, userID string, r Result) Result {
	if userID == "" {
		return r
	}

	autoBlocked, duration, err := e.ledger.Record(ctx, userID, string(r.Severity))
	if err != nil {
		log.Printf("[moderation] record violation user=%s: %v", userID, err)
		return r
	}
	if autoBlocked {
		log.Printf("[moderation] auto-blocked user=%s for %s (reason=%s)", userID, duration, r.Reason)
	}
	return r
}

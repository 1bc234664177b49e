// Package violation keeps the per-user penalty ledger backed by Redis.
// Moderation rejections accumulate as violations:
//
//	Key:   violations:<user_id>  (hash: count, last_violation, max_severity)
//	TTL:   none by default, penalties are cumulative (see Config.ViolationTTL)
//
// Crossing the auto-block threshold installs a block with escalating duration:
//
//	Key:   block:<user_id>
//	Value: <reason>
//	TTL:   block duration
package violation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danmaku/live-comments/internal/metrics"
)

const (
	// ViolationPrefix is the Redis key prefix for violation ledgers.
	ViolationPrefix = "violations:"

	// BlockPrefix is the Redis key prefix for block records.
	BlockPrefix = "block:"

	// AutoBlockThreshold is the cumulative violation count that triggers an
	// automatic block.
	AutoBlockThreshold = 5

	// Escalating block durations. The steps are a function of the total
	// count, not a multiplier.
	BlockBase   = 1 * time.Hour  // below 5 violations (manual/explicit blocks)
	Block6Hour  = 6 * time.Hour  // >= 5 violations
	Block24Hour = 24 * time.Hour // >= 10 violations
)

// severityRank orders severities so the ledger can keep the highest seen.
var severityRank = map[string]int{
	"low":    1,
	"medium": 2,
	"high":   3,
}

// Config tunes the tracker. The zero value uses package defaults.
type Config struct {
	// ViolationTTL resets a user's ledger after this much inactivity.
	// Zero means violations never expire, matching the platform's
	// cumulative-penalty policy.
	ViolationTTL time.Duration
}

// Tracker manages violation ledgers and block records in Redis. Counters use
// atomic HINCRBY so concurrent moderation hits for the same user across
// streams never lose updates.
type Tracker struct {
	client *redis.Client
	config Config
}

// NewTracker creates a Tracker using the provided Redis client.
func NewTracker(client *redis.Client, config Config) *Tracker {
	return &Tracker{client: client, config: config}
}

// ShouldAutoBlock reports whether a cumulative violation count warrants an
// automatic block.
func ShouldAutoBlock(count int) bool {
	return count >= AutoBlockThreshold
}

// BlockDuration returns the escalating block duration for a violation count.
func BlockDuration(count int) time.Duration {
	switch {
	case count >= 10:
		return Block24Hour
	case count >= AutoBlockThreshold:
		return Block6Hour
	default:
		return BlockBase
	}
}

// Record adds one violation of the given severity to the user's ledger.
// When the cumulative count reaches the auto-block threshold, a block with
// escalating duration is installed (overwriting any existing one). Returns
// whether a block was applied and for how long.
func (t *Tracker) Record(ctx context.Context, userID string, severity string) (bool, time.Duration, error) {
	key := ViolationPrefix + userID

	count, err := t.client.HIncrBy(ctx, key, "count", 1).Result()
	if err != nil {
		return false, 0, fmt.Errorf("violation: record incr: %w", err)
	}

	pipe := t.client.Pipeline()
	pipe.HSet(ctx, key, "last_violation", time.Now().Unix())
	if t.config.ViolationTTL > 0 {
		pipe.Expire(ctx, key, t.config.ViolationTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("violation: record update: %w", err)
	}

	// Best-effort highest-severity tracking; the count is the authoritative
	// escalation input.
	if current, err := t.client.HGet(ctx, key, "max_severity").Result(); err == nil {
		if severityRank[severity] > severityRank[current] {
			t.client.HSet(ctx, key, "max_severity", severity)
		}
	} else if errors.Is(err, redis.Nil) {
		t.client.HSet(ctx, key, "max_severity", severity)
	}

	if !ShouldAutoBlock(int(count)) {
		return false, 0, nil
	}

	duration := BlockDuration(int(count))
	if err := t.Block(ctx, userID, duration, "auto: repeated violations"); err != nil {
		return false, 0, err
	}
	metrics.AutoBlocksTotal.Inc()
	return true, duration, nil
}

// Count returns the user's cumulative violation count.
func (t *Tracker) Count(ctx context.Context, userID string) (int, error) {
	val, err := t.client.HGet(ctx, ViolationPrefix+userID, "count").Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("violation: count: %w", err)
	}
	return val, nil
}

// IsBlocked reports whether the user is currently blocked and the remaining
// duration. Expired blocks disappear with their TTL, so there is nothing to
// clean up here.
func (t *Tracker) IsBlocked(ctx context.Context, userID string) (bool, time.Duration, error) {
	key := BlockPrefix + userID

	if _, err := t.client.Get(ctx, key).Result(); errors.Is(err, redis.Nil) {
		return false, 0, nil
	} else if err != nil {
		return false, 0, fmt.Errorf("violation: blocked check: %w", err)
	}

	ttl, err := t.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// The block exists but the TTL is unreadable; report blocked with
		// zero remaining rather than swallowing the block.
		return true, 0, nil
	}
	return true, ttl, nil
}

// Block installs a block on a user for the given duration, overwriting any
// existing block. Used by both auto-escalation and manual moderator action.
func (t *Tracker) Block(ctx context.Context, userID string, duration time.Duration, reason string) error {
	if err := t.client.Set(ctx, BlockPrefix+userID, reason, duration).Err(); err != nil {
		return fmt.Errorf("violation: block: %w", err)
	}
	return nil
}

// Unblock removes a user's block immediately. Manual moderator path; the
// violation ledger is left untouched.
func (t *Tracker) Unblock(ctx context.Context, userID string) error {
	if err := t.client.Del(ctx, BlockPrefix+userID).Err(); err != nil {
		return fmt.Errorf("violation: unblock: %w", err)
	}
	return nil
}

package violation

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestShouldAutoBlock(t *testing.T) {
	tests := []struct {
		count int
		want  bool
	}{
		{0, false},
		{4, false},
		{5, true},
		{6, true},
		{100, true},
	}
	for _, tt := range tests {
		if got := ShouldAutoBlock(tt.count); got != tt.want {
			t.Errorf("ShouldAutoBlock(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestBlockDuration(t *testing.T) {
	tests := []struct {
		count int
		want  time.Duration
	}{
		{0, BlockBase},
		{4, BlockBase},
		{5, Block6Hour},
		{9, Block6Hour},
		{10, Block24Hour},
		{50, Block24Hour},
	}
	for _, tt := range tests {
		if got := BlockDuration(tt.count); got != tt.want {
			t.Errorf("BlockDuration(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestValidateModerationAction(t *testing.T) {
	tests := []struct {
		name        string
		actor       int
		target      int
		action      string
		wantAllowed bool
	}{
		{"level 3 blocks level 0", 3, 0, ActionBlock, true},
		{"level 2 cannot block", 2, 0, ActionBlock, false},
		{"level 3 unblocks", 3, 1, ActionUnblock, true},
		{"level 2 mutes", 2, 0, ActionMute, true},
		{"level 1 cannot mute", 1, 0, ActionMute, false},
		{"level 1 warns", 1, 0, ActionWarn, true},
		{"level 0 cannot warn", 0, 0, ActionWarn, false},
		{"equal level forbidden", 3, 3, ActionBlock, false},
		{"higher target forbidden", 3, 4, ActionWarn, false},
		{"unknown action", 5, 0, "banish", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModerationAction(tt.actor, tt.target, tt.action)
			if (err == nil) != tt.wantAllowed {
				t.Errorf("ValidateModerationAction(%d, %d, %q) err=%v, want allowed=%v",
					tt.actor, tt.target, tt.action, err, tt.wantAllowed)
			}
		})
	}
}

// newTestTracker connects to a local Redis and clears test keys. Tests using
// it are skipped when Redis is not reachable.
func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	cleanup := func() {
		for _, pattern := range []string{ViolationPrefix + "test_*", BlockPrefix + "test_*"} {
			iter := client.Scan(ctx, 0, pattern, 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewTracker(client, Config{})
}

func TestRecord_Escalation(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	user := "test_escalation"

	// Four violations: no block yet.
	for i := 0; i < 4; i++ {
		blocked, _, err := tr.Record(ctx, user, "low")
		if err != nil {
			t.Fatalf("Record() error: %v", err)
		}
		if blocked {
			t.Fatalf("blocked after %d violations", i+1)
		}
	}

	if b, _, _ := tr.IsBlocked(ctx, user); b {
		t.Fatal("user blocked before threshold")
	}

	// The fifth violation must block for at least 6 hours.
	blocked, duration, err := tr.Record(ctx, user, "medium")
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if !blocked {
		t.Fatal("fifth violation did not auto-block")
	}
	if duration < Block6Hour {
		t.Errorf("block duration %v, want >= %v", duration, Block6Hour)
	}

	b, remaining, err := tr.IsBlocked(ctx, user)
	if err != nil {
		t.Fatalf("IsBlocked() error: %v", err)
	}
	if !b {
		t.Fatal("IsBlocked = false after auto-block")
	}
	if remaining <= 0 {
		t.Errorf("remaining = %v, want > 0", remaining)
	}

	count, err := tr.Count(ctx, user)
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 5 {
		t.Errorf("Count = %d, want 5", count)
	}
}

func TestBlockAndUnblock(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	user := "test_manual_block"

	if err := tr.Block(ctx, user, time.Minute, "moderator action"); err != nil {
		t.Fatalf("Block() error: %v", err)
	}
	if b, _, _ := tr.IsBlocked(ctx, user); !b {
		t.Fatal("user not blocked after Block()")
	}

	// Manual block leaves the ledger untouched.
	if count, _ := tr.Count(ctx, user); count != 0 {
		t.Errorf("manual block added violations: count=%d", count)
	}

	if err := tr.Unblock(ctx, user); err != nil {
		t.Fatalf("Unblock() error: %v", err)
	}
	if b, _, _ := tr.IsBlocked(ctx, user); b {
		t.Fatal("user still blocked after Unblock()")
	}
}

func TestBlockExpiry(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	user := "test_block_expiry"

	if err := tr.Block(ctx, user, 50*time.Millisecond, "short"); err != nil {
		t.Fatalf("Block() error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if b, _, _ := tr.IsBlocked(ctx, user); b {
		t.Error("block did not expire")
	}
}

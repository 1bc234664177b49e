package session

import (
	"fmt"
	"testing"
	"time"
)

func TestJoinLeave(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	base := time.Now()

	r.Join("s1", "u1", base)
	r.Join("s1", "u2", base.Add(time.Second))

	if got := r.ViewerCount("s1"); got != 2 {
		t.Fatalf("ViewerCount = %d, want 2", got)
	}

	duration, ok := r.Leave("s1", "u1", base.Add(90*time.Second))
	if !ok {
		t.Fatal("Leave returned ok=false for joined viewer")
	}
	if duration != 90*time.Second {
		t.Errorf("session duration = %v, want 90s", duration)
	}
	if got := r.ViewerCount("s1"); got != 1 {
		t.Errorf("ViewerCount after leave = %d, want 1", got)
	}

	hist := r.History("s1")
	if len(hist) != 1 || hist[0].Viewer != "u1" || hist[0].Duration != 90*time.Second {
		t.Errorf("History = %+v, want one u1 record of 90s", hist)
	}
}

func TestLeave_NotJoined(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	if _, ok := r.Leave("s1", "ghost", time.Now()); ok {
		t.Error("Leave returned ok=true for viewer that never joined")
	}
}

func TestJoin_Idempotent(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	base := time.Now()

	r.Join("s1", "u1", base)
	r.Join("s1", "u1", base.Add(30*time.Second)) // rejoin keeps original time

	if got := r.ViewerCount("s1"); got != 1 {
		t.Fatalf("ViewerCount = %d, want 1", got)
	}
	duration, _ := r.Leave("s1", "u1", base.Add(60*time.Second))
	if duration != 60*time.Second {
		t.Errorf("duration = %v, want 60s (original join time)", duration)
	}
}

func TestViewerCount_IsolatedPerStream(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	now := time.Now()

	r.Join("s1", "u1", now)
	r.Join("s2", "u1", now)
	r.Join("s2", "u2", now)

	if got := r.ViewerCount("s1"); got != 1 {
		t.Errorf("s1 count = %d, want 1", got)
	}
	if got := r.ViewerCount("s2"); got != 2 {
		t.Errorf("s2 count = %d, want 2", got)
	}
}

func TestCheckRateLimit_Boundary(t *testing.T) {
	r := NewRegistry(Config{RateLimit: 30, RateWindow: 60 * time.Second})
	base := time.Now()

	// 30 submissions inside the window are allowed.
	for i := 0; i < 30; i++ {
		allowed, _ := r.CheckRateLimit("s1", "u1", base.Add(time.Duration(i)*time.Second))
		if !allowed {
			t.Fatalf("submission %d rejected, want allowed", i+1)
		}
	}

	// The 31st within the window is rejected with a retry hint.
	allowed, retryAfter := r.CheckRateLimit("s1", "u1", base.Add(45*time.Second))
	if allowed {
		t.Fatal("31st submission allowed, want rejected")
	}
	if retryAfter <= 0 || retryAfter > 60*time.Second {
		t.Errorf("retryAfter = %v, want within (0, 60s]", retryAfter)
	}

	// After the window elapses, submissions resume.
	allowed, _ = r.CheckRateLimit("s1", "u1", base.Add(61*time.Second))
	if !allowed {
		t.Error("submission after window expiry rejected")
	}
}

func TestCheckRateLimit_PerUserPerStream(t *testing.T) {
	r := NewRegistry(Config{RateLimit: 2, RateWindow: time.Minute})
	now := time.Now()

	r.CheckRateLimit("s1", "u1", now)
	r.CheckRateLimit("s1", "u1", now)
	if allowed, _ := r.CheckRateLimit("s1", "u1", now); allowed {
		t.Fatal("u1 over limit on s1 but allowed")
	}

	// Same user on another stream, and another user on the same stream,
	// have their own windows.
	if allowed, _ := r.CheckRateLimit("s2", "u1", now); !allowed {
		t.Error("u1 rejected on unrelated stream")
	}
	if allowed, _ := r.CheckRateLimit("s1", "u2", now); !allowed {
		t.Error("u2 rejected on shared stream")
	}
}

func TestCheckCooldown(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	base := time.Now()
	cooldown := 5 * time.Second

	if !r.CheckCooldown("s1", "u1", base, cooldown) {
		t.Fatal("first comment blocked by cooldown")
	}
	r.MarkComment("s1", "u1", base)

	if r.CheckCooldown("s1", "u1", base.Add(2*time.Second), cooldown) {
		t.Error("cooldown not enforced at 2s")
	}
	if !r.CheckCooldown("s1", "u1", base.Add(5*time.Second), cooldown) {
		t.Error("cooldown still enforced at 5s")
	}
	if !r.CheckCooldown("s1", "u1", base.Add(time.Second), 0) {
		t.Error("zero cooldown must always pass")
	}
}

func TestEndStream_DropsState(t *testing.T) {
	r := NewRegistry(Config{RateLimit: 1, RateWindow: time.Hour})
	now := time.Now()

	r.Join("s1", "u1", now)
	r.CheckRateLimit("s1", "u1", now)
	r.EndStream("s1")

	if got := r.ViewerCount("s1"); got != 0 {
		t.Errorf("ViewerCount after EndStream = %d, want 0", got)
	}
	// Rate window was dropped with the stream.
	if allowed, _ := r.CheckRateLimit("s1", "u1", now); !allowed {
		t.Error("rate window survived EndStream")
	}
}

func TestRegistry_ConcurrentJoins(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	now := time.Now()

	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			r.Join("s1", fmt.Sprintf("u%d", i), now)
		}(i)
	}
	for i := 0; i < 50; i++ {
		<-done
	}

	if got := r.ViewerCount("s1"); got != 50 {
		t.Errorf("ViewerCount = %d, want 50", got)
	}
}

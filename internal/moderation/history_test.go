package moderation

import (
	"fmt"
	"testing"
	"time"
)

func TestHistory_AddAndRecent(t *testing.T) {
	h := NewHistory()
	now := time.Now()

	h.Add("u1", "s1", "first", now)
	h.Add("u1", "s1", "second", now)

	got := h.Recent("u1", "s1", now)
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("Recent = %v, want [first second]", got)
	}

	if other := h.Recent("u2", "s1", now); len(other) != 0 {
		t.Errorf("other user has history: %v", other)
	}
	if other := h.Recent("u1", "s2", now); len(other) != 0 {
		t.Errorf("other stream has history: %v", other)
	}
}

func TestHistory_RingBound(t *testing.T) {
	h := NewHistory()
	now := time.Now()

	for i := 0; i < MaxHistoryMessages+5; i++ {
		h.Add("u1", "s1", fmt.Sprintf("msg-%d", i), now)
	}

	got := h.Recent("u1", "s1", now)
	if len(got) != MaxHistoryMessages {
		t.Fatalf("retained %d messages, want %d", len(got), MaxHistoryMessages)
	}
	if got[0] != "msg-5" {
		t.Errorf("oldest retained = %q, want msg-5", got[0])
	}
	if got[len(got)-1] != fmt.Sprintf("msg-%d", MaxHistoryMessages+4) {
		t.Errorf("newest retained = %q", got[len(got)-1])
	}
}

func TestHistory_TimeBox(t *testing.T) {
	h := NewHistory()
	base := time.Now()

	h.Add("u1", "s1", "stale", base)
	h.Add("u1", "s1", "fresh", base.Add(4*time.Minute))

	got := h.Recent("u1", "s1", base.Add(6*time.Minute))
	if len(got) != 1 || got[0] != "fresh" {
		t.Errorf("Recent = %v, want [fresh]", got)
	}
}

func TestHistory_DropStream(t *testing.T) {
	h := NewHistory()
	now := time.Now()

	h.Add("u1", "s1", "a", now)
	h.Add("u2", "s1", "b", now)
	h.Add("u1", "s2", "c", now)

	h.DropStream("s1")

	if got := h.Recent("u1", "s1", now); len(got) != 0 {
		t.Errorf("s1 history survived DropStream: %v", got)
	}
	if got := h.Recent("u1", "s2", now); len(got) != 1 {
		t.Errorf("unrelated stream history lost: %v", got)
	}
}

package moderation

import (
	"context"
	"strings"
	"testing"
	"time"
)

// fakeLedger implements Ledger in memory for engine tests.
type fakeLedger struct {
	blocked  map[string]bool
	recorded []string // "<userID>:<severity>"
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{blocked: make(map[string]bool)}
}

func (f *fakeLedger) IsBlocked(_ context.Context, userID string) (bool, time.Duration, error) {
	if f.blocked[userID] {
		return true, time.Hour, nil
	}
	return false, 0, nil
}

func (f *fakeLedger) Record(_ context.Context, userID string, severity string) (bool, time.Duration, error) {
	f.recorded = append(f.recorded, userID+":"+severity)
	return false, 0, nil
}

func newTestEngine(ledger Ledger) *Engine {
	return NewEngine(NewFilterWithTerms([]string{"badword"}), NewHistory(), ledger, 0)
}

func TestModerate_Allowed(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEngine(ledger)

	res := e.Moderate(context.Background(), "what a great play", "u1", "s1", time.Now())
	if !res.Allowed {
		t.Fatalf("expected allowed, got reason=%q", res.Reason)
	}
	if len(ledger.recorded) != 0 {
		t.Errorf("violations recorded for clean message: %v", ledger.recorded)
	}
}

func TestModerate_BlockedUserShortCircuits(t *testing.T) {
	ledger := newFakeLedger()
	ledger.blocked["u1"] = true
	e := newTestEngine(ledger)

	// Text also contains a banned word; the block check must win.
	res := e.Moderate(context.Background(), "badword", "u1", "s1", time.Now())
	if res.Allowed {
		t.Fatal("expected rejection")
	}
	if res.Reason != ReasonUserBlocked || res.Severity != SeverityHigh {
		t.Errorf("got reason=%q severity=%q, want %q/high", res.Reason, res.Severity, ReasonUserBlocked)
	}
	if len(ledger.recorded) != 0 {
		t.Errorf("blocked-user rejection must not add violations: %v", ledger.recorded)
	}
}

func TestModerate_BannedWordRecordsMedium(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEngine(ledger)

	res := e.Moderate(context.Background(), "you badword!", "u1", "s1", time.Now())
	if res.Allowed || res.Reason != ReasonBannedWord || res.Severity != SeverityMedium {
		t.Fatalf("got %+v, want banned word / medium", res)
	}
	if len(ledger.recorded) != 1 || ledger.recorded[0] != "u1:medium" {
		t.Errorf("recorded = %v, want [u1:medium]", ledger.recorded)
	}
}

func TestModerate_SpamRecordsLow(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEngine(ledger)

	res := e.Moderate(context.Background(), strings.Repeat("a", 20), "u1", "s1", time.Now())
	if res.Allowed || res.Reason != ReasonSpamPattern || res.Severity != SeverityLow {
		t.Fatalf("got %+v, want spam pattern / low", res)
	}
	if res.Detail != "char_flood" {
		t.Errorf("detail = %q, want char_flood", res.Detail)
	}
}

func TestModerate_DuplicateDetection(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEngine(ledger)
	ctx := context.Background()
	now := time.Now()

	if res := e.Moderate(ctx, "gg that was amazing", "u1", "s1", now); !res.Allowed {
		t.Fatalf("first message rejected: %+v", res)
	}

	// Near-identical resend must trip the similarity gate.
	res := e.Moderate(ctx, "gg that was amazing!", "u1", "s1", now.Add(time.Second))
	if res.Allowed || res.Reason != ReasonDuplicate {
		t.Fatalf("got %+v, want duplicate rejection", res)
	}

	// A different message from the same user still goes through.
	if res := e.Moderate(ctx, "did anyone clip that combo", "u1", "s1", now.Add(2*time.Second)); !res.Allowed {
		t.Fatalf("distinct message rejected: %+v", res)
	}
}

func TestModerate_DuplicateScopedPerStream(t *testing.T) {
	e := newTestEngine(newFakeLedger())
	ctx := context.Background()
	now := time.Now()

	e.Moderate(ctx, "hello everyone", "u1", "s1", now)
	if res := e.Moderate(ctx, "hello everyone", "u1", "s2", now); !res.Allowed {
		t.Errorf("same text on another stream rejected: %+v", res)
	}
}

func TestModerate_AnonymousNeverRecorded(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEngine(ledger)

	res := e.Moderate(context.Background(), "badword", "", "s1", time.Now())
	if res.Allowed {
		t.Fatal("expected rejection for banned word")
	}
	if len(ledger.recorded) != 0 {
		t.Errorf("anonymous rejection recorded violations: %v", ledger.recorded)
	}
}

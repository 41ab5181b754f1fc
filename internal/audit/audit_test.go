package audit_test

import (
	"testing"
	"time"

	"vigia/internal/audit"
	"vigia/internal/domain"
)

func TestEntryStampsDeterministically(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	w := audit.Writer{Now: func() time.Time { return fixed }}

	e := w.Entry(domain.ActionTag, "u-1", audit.Details{"level": domain.TagHigh})
	if e.ID == "" {
		t.Fatalf("entries carry their own id")
	}
	if !e.Timestamp.Equal(fixed) {
		t.Fatalf("expected injected timestamp, got %s", e.Timestamp)
	}
	if e.Action != domain.ActionTag || e.ActingUser != "u-1" {
		t.Fatalf("entry fields wrong: %+v", e)
	}

	empty := w.Entry(domain.ActionComment, "u-1", nil)
	if empty.Details == nil {
		t.Fatalf("nil details must normalize to an empty map")
	}
}

func TestEntryTimestampsAreUTC(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	w := audit.Writer{Now: func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, loc) }}
	e := w.Entry(domain.ActionCreate, "u-1", nil)
	if e.Timestamp.Location() != time.UTC {
		t.Fatalf("ledger timestamps are UTC, got %s", e.Timestamp.Location())
	}
}

func TestTransitionRecord(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	w := audit.Writer{Now: func() time.Time { return fixed }}

	tr := w.Transition(domain.QueueGeneral, domain.QueuePriority, "u-1", "u-2", "u-2", "escalación", "regla-1")
	if tr.SourceQueue != domain.QueueGeneral || tr.DestinationQueue != domain.QueuePriority {
		t.Fatalf("queues wrong: %+v", tr)
	}
	if tr.PreviousOwner != "u-1" || tr.NewOwner != "u-2" || tr.ActingUser != "u-2" {
		t.Fatalf("owners wrong: %+v", tr)
	}
	if tr.Reason != "escalación" || tr.AppliedRuleID != "regla-1" {
		t.Fatalf("provenance wrong: %+v", tr)
	}
}

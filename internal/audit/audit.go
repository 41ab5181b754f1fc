// Package audit builds the immutable ledger entries every mutation appends.
package audit

import (
	"time"

	"github.com/google/uuid"

	"vigia/internal/domain"
)

// Writer stamps ledger entries. Now is injectable so tests get deterministic
// timestamps.
type Writer struct {
	Now func() time.Time
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

// Details carries before/after values of the changed fields.
type Details map[string]any

// Entry builds an audit entry for a mutation (or a denied attempt).
func (w Writer) Entry(action domain.ActionType, actingUser string, details Details) domain.AuditEntry {
	if details == nil {
		details = Details{}
	}
	return domain.AuditEntry{
		ID:         uuid.New().String(),
		Action:     action,
		Timestamp:  w.now(),
		ActingUser: actingUser,
		Details:    details,
	}
}

// Transition builds the queue-movement ledger record.
func (w Writer) Transition(source, destination domain.Queue, previousOwner, newOwner, actingUser, reason, appliedRuleID string) domain.TransitionRecord {
	return domain.TransitionRecord{
		Timestamp:        w.now(),
		SourceQueue:      source,
		DestinationQueue: destination,
		PreviousOwner:    previousOwner,
		NewOwner:         newOwner,
		ActingUser:       actingUser,
		Reason:           reason,
		AppliedRuleID:    appliedRuleID,
	}
}

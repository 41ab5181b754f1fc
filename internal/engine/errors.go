package engine

import (
	"fmt"

	"vigia/internal/domain"
)

// PermissionError indicates the acting user's role is not authorized for the
// attempted action. It carries enough context to reconstruct the attempt.
type PermissionError struct {
	ActorID   string
	Role      domain.Role
	Action    string
	ElementID string
}

func (e *PermissionError) Error() string {
	if e.ElementID == "" {
		return fmt.Sprintf("role %s cannot %s (actor %s)", e.Role, e.Action, e.ActorID)
	}
	return fmt.Sprintf("role %s cannot %s on %s (actor %s)", e.Role, e.Action, e.ElementID, e.ActorID)
}

// InvalidTransitionError indicates a queue or status transition the state
// machine rejects.
type InvalidTransitionError struct {
	ElementID string
	From      string
	To        string
	Detail    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s on %s: %s", e.From, e.To, e.ElementID, e.Detail)
}

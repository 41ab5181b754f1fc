package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigia/internal/audit"
	"vigia/internal/domain"
	"vigia/internal/policy"
)

// CalibrationCreateOptions are parameters for scheduling a calibration
// session over a group of reviews.
type CalibrationCreateOptions struct {
	Type           string
	Title          string
	Description    string
	ParticipantIDs []string
	ScheduledAt    *time.Time
	LinkedReviews  []string
	ActorID        string
}

// CreateCalibration opens a calibration session. Sessions are queue-routable
// like reviews: they start with a creation transition into the track's home
// queue. Only the roles that originate calibration marks may open sessions.
func (e Engine) CreateCalibration(ctx context.Context, opts CalibrationCreateOptions) (*domain.CalibrationRecord, error) {
	actor, err := e.actor(opts.ActorID)
	if err != nil {
		return nil, err
	}
	if !policy.CanMarkForCalibration(actor.Role) {
		return nil, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: "create calibration session"}
	}
	calType, err := domain.ParseCalibrationType(opts.Type)
	if err != nil {
		return nil, err
	}
	if opts.Title == "" {
		return nil, errors.New("title is required")
	}
	for _, id := range opts.LinkedReviews {
		if _, err := e.Store.GetReview(id); err != nil {
			return nil, fmt.Errorf("linked review %s: %w", id, err)
		}
	}
	for _, id := range opts.ParticipantIDs {
		if _, err := e.Store.GetUser(id); err != nil {
			return nil, fmt.Errorf("participant %s: %w", id, err)
		}
	}
	now := e.now()
	w := e.ledger()
	home, notify := calibrationHome(calType)
	c := &domain.CalibrationRecord{
		ID:             uuid.New().String(),
		Type:           calType,
		Title:          opts.Title,
		Description:    opts.Description,
		Status:         domain.CalibrationPending,
		Queue:          home,
		OwnerID:        actor.ID,
		ResponsibleID:  actor.ID,
		ParticipantIDs: append([]string(nil), opts.ParticipantIDs...),
		LinkedReviews:  append([]string(nil), opts.LinkedReviews...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if opts.ScheduledAt != nil {
		at := *opts.ScheduledAt
		c.ScheduledAt = &at
	}
	c.Transitions = append(c.Transitions, w.Transition(domain.QueueGeneral, home, "", actor.ID, actor.ID, "alta de calibración", ""))
	c.Audit = append(c.Audit, w.Entry(domain.ActionCreate, actor.ID, audit.Details{
		"type":   calType,
		"queue":  home,
		"notify": notify,
	}))
	if err := e.Store.InsertCalibration(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e Engine) GetCalibration(ctx context.Context, id string) (*domain.CalibrationRecord, error) {
	return e.Store.GetCalibration(id)
}

// ListCalibrations returns the sessions the acting user's role sees:
// supervisors their track, managers theirs, administrators everything, team
// leaders the sessions they run or sit in.
func (e Engine) ListCalibrations(ctx context.Context, actorID string) ([]*domain.CalibrationRecord, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	all := e.Store.ListCalibrations()
	out := make([]*domain.CalibrationRecord, 0, len(all))
	for _, c := range all {
		if calibrationVisible(actor, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func calibrationVisible(u domain.User, c *domain.CalibrationRecord) bool {
	switch u.Role {
	case domain.RoleAdministrator:
		return true
	case domain.RoleSupervisor:
		return c.Type == domain.CalibrationSupervisors
	case domain.RoleManager:
		return c.Type == domain.CalibrationManagers
	case domain.RoleTeamLeader:
		if c.ResponsibleID == u.ID {
			return true
		}
		for _, p := range c.ParticipantIDs {
			if p == u.ID {
				return true
			}
		}
	}
	return false
}

// SetCalibrationStatus advances the session lifecycle
// Pendiente -> En Revisión -> Completado.
func (e Engine) SetCalibrationStatus(ctx context.Context, id string, status domain.CalibrationStatus, actorID string) (*domain.CalibrationRecord, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	w := e.ledger()
	return e.Store.UpdateCalibration(id, func(c *domain.CalibrationRecord) error {
		if err := ensureCalibrationTransition(c.Status, status); err != nil {
			return &InvalidTransitionError{ElementID: id, From: string(c.Status), To: string(status), Detail: err.Error()}
		}
		before := c.Status
		c.Status = status
		c.Audit = append(c.Audit, w.Entry(domain.ActionStatusChange, actor.ID, audit.Details{"before": before, "after": status}))
		c.UpdatedAt = e.now()
		return nil
	})
}

func ensureCalibrationTransition(oldStatus, newStatus domain.CalibrationStatus) error {
	switch oldStatus {
	case domain.CalibrationPending:
		if newStatus == domain.CalibrationInReview {
			return nil
		}
	case domain.CalibrationInReview:
		if newStatus == domain.CalibrationCompleted {
			return nil
		}
	}
	return fmt.Errorf("calibration status %s does not reach %s", oldStatus, newStatus)
}

// AddCalibrationComment appends to the session's discussion thread.
func (e Engine) AddCalibrationComment(ctx context.Context, id, text, actorID string) (*domain.CalibrationRecord, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, errors.New("comment text is required")
	}
	w := e.ledger()
	return e.Store.UpdateCalibration(id, func(c *domain.CalibrationRecord) error {
		c.Comments = append(c.Comments, domain.Comment{UserID: actor.ID, Timestamp: e.now(), Text: text})
		c.Audit = append(c.Audit, w.Entry(domain.ActionComment, actor.ID, audit.Details{"text": text}))
		c.UpdatedAt = e.now()
		return nil
	})
}

// LinkReview attaches a review to the session's group.
func (e Engine) LinkReview(ctx context.Context, calibrationID, reviewID, actorID string) (*domain.CalibrationRecord, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if _, err := e.Store.GetReview(reviewID); err != nil {
		return nil, fmt.Errorf("review %s: %w", reviewID, err)
	}
	w := e.ledger()
	return e.Store.UpdateCalibration(calibrationID, func(c *domain.CalibrationRecord) error {
		for _, id := range c.LinkedReviews {
			if id == reviewID {
				return nil
			}
		}
		c.LinkedReviews = append(c.LinkedReviews, reviewID)
		c.Audit = append(c.Audit, w.Entry(domain.ActionUpdate, actor.ID, audit.Details{"linked_review": reviewID}))
		c.UpdatedAt = e.now()
		return nil
	})
}

// RequeueCalibration moves a session between queues with the same ledger
// discipline reviews have.
func (e Engine) RequeueCalibration(ctx context.Context, id string, destination domain.Queue, reason, actorID string) (*domain.CalibrationRecord, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseQueue(string(destination)); err != nil {
		return nil, err
	}
	w := e.ledger()
	return e.Store.UpdateCalibration(id, func(c *domain.CalibrationRecord) error {
		if destination == c.Queue && reason == "" {
			return &InvalidTransitionError{ElementID: id, From: string(c.Queue), To: string(destination), Detail: "same-queue transition requires a reason"}
		}
		prevQueue, prevOwner := c.Queue, c.OwnerID
		c.Transitions = append(c.Transitions, w.Transition(prevQueue, destination, prevOwner, actor.ID, actor.ID, reason, ""))
		c.Queue = destination
		c.OwnerID = actor.ID
		c.Audit = append(c.Audit, w.Entry(domain.ActionQueueChange, actor.ID, audit.Details{
			"queue_before": prevQueue,
			"queue_after":  destination,
			"owner_before": prevOwner,
			"owner_after":  actor.ID,
			"reason":       reason,
		}))
		c.UpdatedAt = e.now()
		return nil
	})
}

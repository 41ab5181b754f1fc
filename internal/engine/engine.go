// Package engine applies user actions to reviews: it authorizes them against
// the permission policy, computes effects with the rule evaluator and commits
// them under the store's per-element writer lock, appending the transition
// and audit ledgers together with the state change.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigia/internal/audit"
	"vigia/internal/config"
	"vigia/internal/domain"
	"vigia/internal/policy"
	"vigia/internal/rules"
	"vigia/internal/store"
)

type Engine struct {
	Store  *store.Store
	Config *config.Config
	Now    func() time.Time
}

func New(st *store.Store, cfg *config.Config) Engine {
	return Engine{
		Store:  st,
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) ledger() audit.Writer {
	return audit.Writer{Now: e.Now}
}

// Seed loads the config's reference users and default rule set into the
// store. Rules already present keep their position.
func (e Engine) Seed() error {
	if e.Config == nil {
		return errors.New("config not loaded")
	}
	for _, su := range e.Config.Users {
		u, err := su.User()
		if err != nil {
			return err
		}
		e.Store.PutUser(u)
	}
	for _, r := range e.Config.Rules {
		if err := e.Store.AppendRule(r); err != nil && !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return nil
}

func (e Engine) actor(id string) (domain.User, error) {
	if id == "" {
		return domain.User{}, errors.New("actor id required")
	}
	u, err := e.Store.GetUser(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("actor %s: %w", id, err)
	}
	return u, nil
}

// ListUsers exposes the selectable user roster.
func (e Engine) ListUsers(ctx context.Context) []domain.User {
	return e.Store.ListUsers()
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	return e.Store.GetUser(id)
}

// CreateReviewOptions are parameters for opening a review.
type CreateReviewOptions struct {
	CaseNumber      string
	Title           string
	Description     string
	InitialTagLevel string
	ActorID         string
}

// CreateReview opens a review in the General queue owned by the acting user
// and logs the creation transition, which establishes ledger provenance even
// when no rule moves the review anywhere.
func (e Engine) CreateReview(ctx context.Context, opts CreateReviewOptions) (*domain.Review, error) {
	actor, err := e.actor(opts.ActorID)
	if err != nil {
		return nil, err
	}
	if opts.CaseNumber == "" {
		return nil, errors.New("case number is required")
	}
	if opts.Title == "" {
		return nil, errors.New("title is required")
	}
	now := e.now()
	r := &domain.Review{
		ID:          uuid.New().String(),
		CaseNumber:  opts.CaseNumber,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      domain.StatusPending,
		Queue:       domain.QueueGeneral,
		OwnerID:     actor.ID,
		Priority:    domain.PriorityMedium,
		Tags:        map[domain.Dimension]domain.TagLevel{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.InitialTagLevel != "" {
		level, err := domain.ParseTagLevel(opts.InitialTagLevel)
		if err != nil {
			return nil, err
		}
		if !policy.CanAssignTag(actor.Role, level) {
			return nil, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: fmt.Sprintf("assign tag %s", level)}
		}
		r.Tags[domain.DimensionOverall] = level
	}

	w := e.ledger()
	dest := domain.QueueGeneral
	var appliedRuleID string
	var notify []domain.Role
	if eff := rules.Evaluate(r, e.Store.ListRules(), now); eff != nil {
		dest = eff.DestinationQueue
		appliedRuleID = eff.AppliedRuleID
		notify = eff.Notify
		if eff.Priority != "" {
			r.Priority = eff.Priority
		}
		if eff.Calibration != nil {
			r.CalibrationMark = &domain.CalibrationMark{Type: *eff.Calibration, MarkedBy: actor.ID, MarkedAt: now}
		}
	}
	r.Transitions = append(r.Transitions, w.Transition(domain.QueueGeneral, dest, "", actor.ID, actor.ID, "alta de monitoreo", appliedRuleID))
	r.Queue = dest
	details := audit.Details{"queue": dest, "status": r.Status}
	if len(notify) > 0 {
		details["notify"] = notify
	}
	r.Audit = append(r.Audit, w.Entry(domain.ActionCreate, actor.ID, details))

	if err := e.Store.InsertReview(r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetReview returns a read-only snapshot of a review.
func (e Engine) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	return e.Store.GetReview(id)
}

// ListReviews returns the role-scoped slice of reviews the acting user sees.
func (e Engine) ListReviews(ctx context.Context, actorID string) ([]*domain.Review, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	all := e.Store.ListReviews()
	out := make([]*domain.Review, 0, len(all))
	for _, r := range all {
		if policy.CanView(actor, r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// AuditTrail returns the mutation ledger of a review.
func (e Engine) AuditTrail(ctx context.Context, id string) ([]domain.AuditEntry, error) {
	r, err := e.Store.GetReview(id)
	if err != nil {
		return nil, err
	}
	return r.Audit, nil
}

// EvaluateReview previews the rule evaluation for a stored review without
// mutating anything. Returns nil when no automatic transition applies.
func (e Engine) EvaluateReview(ctx context.Context, id string) (*rules.Effect, error) {
	r, err := e.Store.GetReview(id)
	if err != nil {
		return nil, err
	}
	return rules.Evaluate(r, e.Store.ListRules(), e.now()), nil
}

// ApplyTag sets one evaluation dimension. Ownership is preserved: tagging is
// not a queue transition. The overall dimension re-invokes the rule
// evaluator, and a resulting effect is committed in the same write.
// A role not authorized for the level gets a PermissionError; the denied
// attempt is ledgered without touching review state or UpdatedAt.
func (e Engine) ApplyTag(ctx context.Context, reviewID string, dimension domain.Dimension, level domain.TagLevel, actorID string) (*domain.Review, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseDimension(string(dimension)); err != nil {
		return nil, err
	}
	if _, err := domain.ParseTagLevel(string(level)); err != nil {
		return nil, err
	}
	w := e.ledger()
	var denied *PermissionError
	updated, err := e.Store.UpdateReview(reviewID, func(r *domain.Review) error {
		if !policy.CanAssignTag(actor.Role, level) {
			r.Audit = append(r.Audit, w.Entry(domain.ActionDeniedAttempt, actor.ID, audit.Details{
				"action":    domain.ActionTag,
				"dimension": dimension,
				"level":     level,
			}))
			denied = &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: fmt.Sprintf("assign %s tag %s", dimension, level), ElementID: reviewID}
			return nil
		}
		before, hadBefore := r.Tags[dimension]
		if r.Tags == nil {
			r.Tags = map[domain.Dimension]domain.TagLevel{}
		}
		r.Tags[dimension] = level
		details := audit.Details{"dimension": dimension, "after": level}
		if hadBefore {
			details["before"] = before
		}
		r.Audit = append(r.Audit, w.Entry(domain.ActionTag, actor.ID, details))
		r.UpdatedAt = e.now()
		if dimension == domain.DimensionOverall {
			eff := rules.Evaluate(r, e.Store.ListRules(), e.now())
			if eff != nil && (eff.DestinationQueue != r.Queue || eff.Calibration != nil) {
				return e.applyEffect(r, eff, actor, "aplicación de regla", w)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if denied != nil {
		return nil, denied
	}
	return updated, nil
}

// Requeue moves a review manually. A same-queue move without a reason is
// rejected as silent ledger churn.
func (e Engine) Requeue(ctx context.Context, reviewID string, destination domain.Queue, reason, actorID string) (*domain.Review, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseQueue(string(destination)); err != nil {
		return nil, err
	}
	w := e.ledger()
	return e.Store.UpdateReview(reviewID, func(r *domain.Review) error {
		return e.applyEffect(r, &rules.Effect{DestinationQueue: destination}, actor, reason, w)
	})
}

// MarkPride flags a review as exemplary. Pride routing is decided by the
// evaluator's override, never here: the review always lands in Gerencia with
// a manager-calibration mark.
func (e Engine) MarkPride(ctx context.Context, reviewID, actorID string) (*domain.Review, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	w := e.ledger()
	return e.Store.UpdateReview(reviewID, func(r *domain.Review) error {
		before := r.PrideCase
		r.PrideCase = true
		r.Audit = append(r.Audit, w.Entry(domain.ActionUpdate, actor.ID, audit.Details{
			"field":  "pride_case",
			"before": before,
			"after":  true,
		}))
		eff := rules.Evaluate(r, e.Store.ListRules(), e.now())
		return e.applyEffect(r, eff, actor, "caso de orgullo", w)
	})
}

// MarkForCalibration flags a review for a calibration track and routes it to
// the track's home queue. Only team leaders and supervisors originate marks.
func (e Engine) MarkForCalibration(ctx context.Context, reviewID string, calType domain.CalibrationType, actorID string) (*domain.Review, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseCalibrationType(string(calType)); err != nil {
		return nil, err
	}
	w := e.ledger()
	var denied *PermissionError
	updated, err := e.Store.UpdateReview(reviewID, func(r *domain.Review) error {
		if !policy.CanMarkForCalibration(actor.Role) {
			r.Audit = append(r.Audit, w.Entry(domain.ActionDeniedAttempt, actor.ID, audit.Details{
				"action": domain.ActionMarkForCalibration,
				"type":   calType,
			}))
			denied = &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: "mark for calibration", ElementID: reviewID}
			return nil
		}
		r.CalibrationMark = &domain.CalibrationMark{Type: calType, MarkedBy: actor.ID, MarkedAt: e.now()}
		r.Audit = append(r.Audit, w.Entry(domain.ActionMarkForCalibration, actor.ID, audit.Details{"type": calType}))
		r.UpdatedAt = e.now()
		dest, notify := calibrationHome(calType)
		if dest != r.Queue {
			return e.applyEffect(r, &rules.Effect{DestinationQueue: dest, Notify: notify}, actor, "marcado para calibración", w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if denied != nil {
		return nil, denied
	}
	return updated, nil
}

// calibrationHome is the queue a calibration track reviews in.
func calibrationHome(t domain.CalibrationType) (domain.Queue, []domain.Role) {
	if t == domain.CalibrationManagers {
		return domain.QueueManagement, []domain.Role{domain.RoleManager}
	}
	return domain.QueueSupervision, []domain.Role{domain.RoleSupervisor}
}

// SetStatus advances the review lifecycle. Terminal statuses admit no exit
// except an administrator override, which is ledgered as its own action type.
func (e Engine) SetStatus(ctx context.Context, reviewID string, status domain.Status, actorID, reason string) (*domain.Review, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return nil, err
	}
	w := e.ledger()
	return e.Store.UpdateReview(reviewID, func(r *domain.Review) error {
		action := domain.ActionStatusChange
		if r.Status.Terminal() {
			if !policy.CanOverrideTerminal(actor.Role) {
				return &InvalidTransitionError{ElementID: reviewID, From: string(r.Status), To: string(status), Detail: "terminal status requires administrator override"}
			}
			action = domain.ActionAdminOverride
		} else if err := ensureStatusTransition(r.Status, status); err != nil {
			return &InvalidTransitionError{ElementID: reviewID, From: string(r.Status), To: string(status), Detail: err.Error()}
		}
		before := r.Status
		r.Status = status
		details := audit.Details{"before": before, "after": status}
		if reason != "" {
			details["reason"] = reason
		}
		r.Audit = append(r.Audit, w.Entry(action, actor.ID, details))
		r.UpdatedAt = e.now()
		// rules may key on the new status
		eff := rules.Evaluate(r, e.Store.ListRules(), e.now())
		if eff != nil && eff.DestinationQueue != r.Queue {
			return e.applyEffect(r, eff, actor, "aplicación de regla", w)
		}
		return nil
	})
}

func ensureStatusTransition(oldStatus, newStatus domain.Status) error {
	switch oldStatus {
	case domain.StatusPending:
		if newStatus == domain.StatusInProgress {
			return nil
		}
	case domain.StatusInProgress:
		if newStatus == domain.StatusCompleted || newStatus == domain.StatusRejected {
			return nil
		}
	}
	return fmt.Errorf("status %s does not reach %s", oldStatus, newStatus)
}

// AddComment appends a note to the review's mutation ledger.
func (e Engine) AddComment(ctx context.Context, reviewID, text, actorID string) (*domain.Review, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, errors.New("comment text is required")
	}
	w := e.ledger()
	return e.Store.UpdateReview(reviewID, func(r *domain.Review) error {
		r.Audit = append(r.Audit, w.Entry(domain.ActionComment, actor.ID, audit.Details{"text": text}))
		r.UpdatedAt = e.now()
		return nil
	})
}

// applyEffect commits a computed transition: ledger record, queue, ownership
// (ownership follows the acting party), priority override and calibration
// mark, plus the matching audit entry. Same-queue moves need a reason; the
// ledger never takes silent no-ops. Pride cases are pinned to Gerencia: any
// move that would take one elsewhere is rejected, whatever its source.
func (e Engine) applyEffect(r *domain.Review, eff *rules.Effect, actor domain.User, reason string, w audit.Writer) error {
	if eff == nil {
		return nil
	}
	if r.PrideCase && eff.DestinationQueue != domain.QueueManagement {
		return &InvalidTransitionError{ElementID: r.ID, From: string(r.Queue), To: string(eff.DestinationQueue), Detail: "pride cases stay in Gerencia"}
	}
	if eff.DestinationQueue == r.Queue && reason == "" {
		return &InvalidTransitionError{ElementID: r.ID, From: string(r.Queue), To: string(eff.DestinationQueue), Detail: "same-queue transition requires a reason"}
	}
	prevQueue, prevOwner := r.Queue, r.OwnerID
	r.Transitions = append(r.Transitions, w.Transition(prevQueue, eff.DestinationQueue, prevOwner, actor.ID, actor.ID, reason, eff.AppliedRuleID))
	r.Queue = eff.DestinationQueue
	r.OwnerID = actor.ID
	if eff.Priority != "" {
		r.Priority = eff.Priority
	}
	if eff.Calibration != nil {
		if r.CalibrationMark == nil || r.CalibrationMark.Type != *eff.Calibration {
			r.CalibrationMark = &domain.CalibrationMark{Type: *eff.Calibration, MarkedBy: actor.ID, MarkedAt: e.now()}
		}
	}
	details := audit.Details{
		"queue_before": prevQueue,
		"queue_after":  r.Queue,
		"owner_before": prevOwner,
		"owner_after":  actor.ID,
	}
	if len(eff.Notify) > 0 {
		details["notify"] = eff.Notify
	}
	if reason != "" {
		details["reason"] = reason
	}
	r.Audit = append(r.Audit, w.Entry(domain.ActionQueueChange, actor.ID, details))
	r.UpdatedAt = e.now()
	return nil
}

// --- rule administration (Administrador only) ---

func (e Engine) requireRuleAdmin(actorID string) (domain.User, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return domain.User{}, err
	}
	if !policy.CanManageRules(actor.Role) {
		return domain.User{}, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: "manage transition rules"}
	}
	return actor, nil
}

func (e Engine) CreateRule(ctx context.Context, rule domain.TransitionRule, actorID string) (domain.TransitionRule, error) {
	if _, err := e.requireRuleAdmin(actorID); err != nil {
		return domain.TransitionRule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if err := rule.Validate(); err != nil {
		return domain.TransitionRule{}, err
	}
	if err := e.Store.AppendRule(rule); err != nil {
		return domain.TransitionRule{}, err
	}
	return rule, nil
}

func (e Engine) UpdateRule(ctx context.Context, rule domain.TransitionRule, actorID string) (domain.TransitionRule, error) {
	if _, err := e.requireRuleAdmin(actorID); err != nil {
		return domain.TransitionRule{}, err
	}
	if err := rule.Validate(); err != nil {
		return domain.TransitionRule{}, err
	}
	if err := e.Store.ReplaceRule(rule); err != nil {
		return domain.TransitionRule{}, err
	}
	return rule, nil
}

func (e Engine) DeleteRule(ctx context.Context, id, actorID string) error {
	if _, err := e.requireRuleAdmin(actorID); err != nil {
		return err
	}
	return e.Store.DeleteRule(id)
}

// ToggleRule flips a rule's active flag and returns the new state.
func (e Engine) ToggleRule(ctx context.Context, id, actorID string) (domain.TransitionRule, error) {
	if _, err := e.requireRuleAdmin(actorID); err != nil {
		return domain.TransitionRule{}, err
	}
	rule, err := e.Store.GetRule(id)
	if err != nil {
		return domain.TransitionRule{}, err
	}
	rule.Active = !rule.Active
	if err := e.Store.ReplaceRule(rule); err != nil {
		return domain.TransitionRule{}, err
	}
	return rule, nil
}

// ListRules returns the rule table in evaluation order.
func (e Engine) ListRules(ctx context.Context) []domain.TransitionRule {
	return e.Store.ListRules()
}

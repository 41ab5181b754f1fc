// Package rules evaluates transition rules against reviews. Evaluation is a
// pure computation; applying the resulting effect is the engine's job.
package rules

import (
	"time"

	"vigia/internal/domain"
)

// Effect is the computed outcome of evaluating a review: where it should go,
// who should hear about it, and which rule (if any) decided that.
type Effect struct {
	DestinationQueue domain.Queue           `json:"destination_queue"`
	Notify           []domain.Role          `json:"notify,omitempty"`
	Priority         domain.Priority        `json:"priority,omitempty"`
	AppliedRuleID    string                 `json:"applied_rule_id,omitempty"`
	Calibration      *domain.CalibrationType `json:"calibration,omitempty"`
}

// Evaluate returns the effect for a review, or nil when no automatic
// transition applies. Pride cases short-circuit the rule table: they are
// forced to Gerencia with a manager-calibration mark no matter what any rule
// says. Otherwise the first active matching rule in collection order wins;
// the collection is never re-sorted.
func Evaluate(r *domain.Review, ruleset []domain.TransitionRule, now time.Time) *Effect {
	if r.PrideCase {
		cal := domain.CalibrationManagers
		return &Effect{
			DestinationQueue: domain.QueueManagement,
			Notify:           []domain.Role{domain.RoleManager},
			Calibration:      &cal,
		}
	}
	for _, rule := range ruleset {
		if !rule.Active {
			continue
		}
		if !Matches(rule, r, now) {
			continue
		}
		return &Effect{
			DestinationQueue: rule.Action.DestinationQueue,
			Notify:           append([]domain.Role(nil), rule.Action.Notify...),
			Priority:         rule.Action.Priority,
			AppliedRuleID:    rule.ID,
		}
	}
	return nil
}

// Matches reports whether every condition of a rule holds for the review.
// Conditions form a conjunction; empty tag/status sets match anything.
func Matches(rule domain.TransitionRule, r *domain.Review, now time.Time) bool {
	if rule.Conditions.SourceQueue != r.Queue {
		return false
	}
	if len(rule.Conditions.TagLevels) > 0 {
		level, ok := r.TagLevel()
		if !ok {
			return false
		}
		if !containsLevel(rule.Conditions.TagLevels, level) {
			return false
		}
	}
	if len(rule.Conditions.Statuses) > 0 && !containsStatus(rule.Conditions.Statuses, r.Status) {
		return false
	}
	if rule.Conditions.WaitMinutes > 0 {
		wait := time.Duration(rule.Conditions.WaitMinutes) * time.Minute
		if now.Sub(arrivedAt(r)) < wait {
			return false
		}
	}
	return true
}

// arrivedAt is when the review entered its current queue.
func arrivedAt(r *domain.Review) time.Time {
	if n := len(r.Transitions); n > 0 {
		return r.Transitions[n-1].Timestamp
	}
	return r.CreatedAt
}

func containsLevel(levels []domain.TagLevel, l domain.TagLevel) bool {
	for _, v := range levels {
		if v == l {
			return true
		}
	}
	return false
}

func containsStatus(statuses []domain.Status, s domain.Status) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

package rules_test

import (
	"testing"
	"time"

	"vigia/internal/domain"
	"vigia/internal/rules"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func review() *domain.Review {
	return &domain.Review{
		ID:        "r-1",
		Status:    domain.StatusPending,
		Queue:     domain.QueueGeneral,
		Tags:      map[domain.Dimension]domain.TagLevel{},
		CreatedAt: now.Add(-time.Hour),
	}
}

func rule(id string, dest domain.Queue) domain.TransitionRule {
	return domain.TransitionRule{
		ID:         id,
		Name:       id,
		Conditions: domain.RuleConditions{SourceQueue: domain.QueueGeneral},
		Action:     domain.RuleAction{DestinationQueue: dest},
		Active:     true,
	}
}

func TestFirstMatchWins(t *testing.T) {
	ruleset := []domain.TransitionRule{
		rule("primera", domain.QueuePriority),
		rule("segunda", domain.QueueSupervision),
	}
	eff := rules.Evaluate(review(), ruleset, now)
	if eff == nil || eff.AppliedRuleID != "primera" {
		t.Fatalf("first rule in collection order must win, got %+v", eff)
	}
	if eff.DestinationQueue != domain.QueuePriority {
		t.Fatalf("expected Prioridad, got %s", eff.DestinationQueue)
	}
}

func TestInactiveRulesAreSkipped(t *testing.T) {
	first := rule("primera", domain.QueuePriority)
	first.Active = false
	ruleset := []domain.TransitionRule{first, rule("segunda", domain.QueueSupervision)}
	eff := rules.Evaluate(review(), ruleset, now)
	if eff == nil || eff.AppliedRuleID != "segunda" {
		t.Fatalf("inactive rule must be skipped, got %+v", eff)
	}
}

func TestNoMatchReturnsNil(t *testing.T) {
	r := review()
	r.Queue = domain.QueuePriority
	if eff := rules.Evaluate(r, []domain.TransitionRule{rule("x", domain.QueueSupervision)}, now); eff != nil {
		t.Fatalf("source queue mismatch must yield nil, got %+v", eff)
	}
}

func TestTagCondition(t *testing.T) {
	tagged := rule("alta", domain.QueueSupervision)
	tagged.Conditions.TagLevels = []domain.TagLevel{domain.TagHigh}

	r := review()
	if eff := rules.Evaluate(r, []domain.TransitionRule{tagged}, now); eff != nil {
		t.Fatalf("untagged review must not match a tag condition")
	}
	r.Tags[domain.DimensionOverall] = domain.TagHigh
	if eff := rules.Evaluate(r, []domain.TransitionRule{tagged}, now); eff == nil {
		t.Fatalf("Alto overall tag should match")
	}
	// Only the overall dimension counts for rules.
	r2 := review()
	r2.Tags[domain.DimensionWelcome] = domain.TagHigh
	if eff := rules.Evaluate(r2, []domain.TransitionRule{tagged}, now); eff != nil {
		t.Fatalf("non-overall dimensions must not satisfy tag conditions")
	}
}

func TestWaitConditionUsesQueueArrival(t *testing.T) {
	waiting := rule("espera", domain.QueuePriority)
	waiting.Conditions.WaitMinutes = 30

	r := review()
	r.CreatedAt = now.Add(-2 * time.Hour)
	r.Transitions = []domain.TransitionRecord{{
		Timestamp:        now.Add(-10 * time.Minute),
		SourceQueue:      domain.QueueGeneral,
		DestinationQueue: domain.QueueGeneral,
	}}
	if eff := rules.Evaluate(r, []domain.TransitionRule{waiting}, now); eff != nil {
		t.Fatalf("wait counts from the last transition, not creation")
	}
	r.Transitions[0].Timestamp = now.Add(-31 * time.Minute)
	if eff := rules.Evaluate(r, []domain.TransitionRule{waiting}, now); eff == nil {
		t.Fatalf("wait threshold passed, rule should fire")
	}
}

func TestPrideOverridesEverything(t *testing.T) {
	contradicting := rule("contra", domain.QueuePriority)
	r := review()
	r.Queue = domain.QueueSupervision
	r.PrideCase = true

	eff := rules.Evaluate(r, []domain.TransitionRule{contradicting}, now)
	if eff == nil {
		t.Fatalf("pride case must always yield an effect")
	}
	if eff.DestinationQueue != domain.QueueManagement {
		t.Fatalf("pride case goes to Gerencia, got %s", eff.DestinationQueue)
	}
	if eff.Calibration == nil || *eff.Calibration != domain.CalibrationManagers {
		t.Fatalf("pride case carries a manager-calibration mark")
	}
	if eff.AppliedRuleID != "" {
		t.Fatalf("pride override is not rule provenance")
	}
}

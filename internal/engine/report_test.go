package engine_test

import (
	"testing"
	"time"

	"vigia/internal/domain"
)

func TestReportIsRoleScoped(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, "u-tl-1")
	mustCreate(t, env, "u-ger-1")

	if _, err := env.Engine.SetStatus(env.Ctx, r.ID, domain.StatusInProgress, "u-tl-1", ""); err != nil {
		t.Fatalf("to En Proceso: %v", err)
	}
	if _, err := env.Engine.SetStatus(env.Ctx, r.ID, domain.StatusCompleted, "u-tl-1", ""); err != nil {
		t.Fatalf("to Completado: %v", err)
	}

	admin, err := env.Engine.Report(env.Ctx, "u-adm-1")
	if err != nil {
		t.Fatalf("admin report: %v", err)
	}
	if admin.Total != 2 || admin.Completed != 1 {
		t.Fatalf("admin slice should cover both reviews, got %+v", admin)
	}

	// Status changes alone do not move queues, so the completed review is
	// still in the team leader's visible slice.
	tl, err := env.Engine.Report(env.Ctx, "u-tl-1")
	if err != nil {
		t.Fatalf("tl report: %v", err)
	}
	if tl.Total != 1 || tl.Completed != 1 {
		t.Fatalf("team leader slice is own reviews only, got %+v", tl)
	}
}

func TestReportAdherenceUsesConfigWeights(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, "u-adm-1")
	if _, err := env.Engine.ApplyTag(env.Ctx, r.ID, domain.DimensionOverall, domain.TagMedHigh, "u-adm-1"); err != nil {
		t.Fatalf("tag: %v", err)
	}

	rep, err := env.Engine.Report(env.Ctx, "u-adm-1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.AdherenceScore != 0.75 {
		t.Fatalf("Medio Alto weighs 0.75, got %v", rep.AdherenceScore)
	}
	if rep.TagDistribution[domain.TagMedHigh] != 1 {
		t.Fatalf("distribution wrong: %v", rep.TagDistribution)
	}
}

func TestQueueStatisticsCountOverdue(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "u-adm-1")
	env.advance(72 * time.Hour)
	mustCreate(t, env, "u-adm-1")

	stats, err := env.Engine.QueueStatistics(env.Ctx, "u-adm-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	general := stats[domain.QueueGeneral]
	if general.Count != 2 {
		t.Fatalf("expected both reviews in General, got %d", general.Count)
	}
	if general.Overdue != 1 {
		t.Fatalf("72h against a 48h SLA is overdue, got %d", general.Overdue)
	}
}

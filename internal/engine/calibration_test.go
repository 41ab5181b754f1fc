package engine_test

import (
	"errors"
	"testing"
	"time"

	"vigia/internal/domain"
	"vigia/internal/engine"
)

func mustCalibration(t *testing.T, env testEnv, calType domain.CalibrationType, actorID string) *domain.CalibrationRecord {
	t.Helper()
	c, err := env.Engine.CreateCalibration(env.Ctx, engine.CalibrationCreateOptions{
		Type:    string(calType),
		Title:   "Sesión de calibración",
		ActorID: actorID,
	})
	if err != nil {
		t.Fatalf("create calibration: %v", err)
	}
	return c
}

func TestCreateCalibrationRoutesToTrackQueue(t *testing.T) {
	env := newTestEnv(t)

	sup := mustCalibration(t, env, domain.CalibrationSupervisors, "u-sup-1")
	if sup.Queue != domain.QueueSupervision {
		t.Fatalf("supervisor track opens in Supervisión, got %s", sup.Queue)
	}
	if sup.Status != domain.CalibrationPending {
		t.Fatalf("sessions open Pendiente, got %s", sup.Status)
	}
	if len(sup.Transitions) != 1 || len(sup.Audit) != 1 {
		t.Fatalf("session opens with exactly one transition and one audit entry")
	}

	mgr := mustCalibration(t, env, domain.CalibrationManagers, "u-tl-1")
	if mgr.Queue != domain.QueueManagement {
		t.Fatalf("manager track opens in Gerencia, got %s", mgr.Queue)
	}
}

func TestCreateCalibrationCopiesScheduledAt(t *testing.T) {
	env := newTestEnv(t)
	at := env.Clock.Add(48 * time.Hour)
	c, err := env.Engine.CreateCalibration(env.Ctx, engine.CalibrationCreateOptions{
		Type:        string(domain.CalibrationSupervisors),
		Title:       "Sesión",
		ScheduledAt: &at,
		ActorID:     "u-sup-1",
	})
	if err != nil {
		t.Fatalf("create calibration: %v", err)
	}
	want := at
	at = at.Add(24 * time.Hour)

	got, err := env.Engine.GetCalibration(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ScheduledAt == nil || !got.ScheduledAt.Equal(want) {
		t.Fatalf("record must not alias the caller's time, got %v", got.ScheduledAt)
	}
}

func TestCreateCalibrationIsGated(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateCalibration(env.Ctx, engine.CalibrationCreateOptions{
		Type:    string(domain.CalibrationManagers),
		Title:   "Sesión",
		ActorID: "u-ger-1",
	})
	var pe *engine.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("managers must not open sessions, got %v", err)
	}
}

func TestCreateCalibrationValidatesReferences(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateCalibration(env.Ctx, engine.CalibrationCreateOptions{
		Type:          string(domain.CalibrationSupervisors),
		Title:         "Sesión",
		LinkedReviews: []string{"no-existe"},
		ActorID:       "u-sup-1",
	})
	if err == nil {
		t.Fatalf("unknown linked review must be rejected")
	}
	_, err = env.Engine.CreateCalibration(env.Ctx, engine.CalibrationCreateOptions{
		Type:           string(domain.CalibrationSupervisors),
		Title:          "Sesión",
		ParticipantIDs: []string{"fantasma"},
		ActorID:        "u-sup-1",
	})
	if err == nil {
		t.Fatalf("unknown participant must be rejected")
	}
}

func TestCalibrationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c := mustCalibration(t, env, domain.CalibrationSupervisors, "u-sup-1")

	if _, err := env.Engine.SetCalibrationStatus(env.Ctx, c.ID, domain.CalibrationCompleted, "u-sup-1"); err == nil {
		t.Fatalf("Pendiente must not jump to Completado")
	}
	if _, err := env.Engine.SetCalibrationStatus(env.Ctx, c.ID, domain.CalibrationInReview, "u-sup-1"); err != nil {
		t.Fatalf("to En Revisión: %v", err)
	}
	done, err := env.Engine.SetCalibrationStatus(env.Ctx, c.ID, domain.CalibrationCompleted, "u-sup-1")
	if err != nil {
		t.Fatalf("to Completado: %v", err)
	}
	if done.Status != domain.CalibrationCompleted {
		t.Fatalf("expected Completado, got %s", done.Status)
	}
}

func TestLinkReviewIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	r := mustCreate(t, env, "u-tl-1")
	c := mustCalibration(t, env, domain.CalibrationSupervisors, "u-sup-1")

	first, err := env.Engine.LinkReview(env.Ctx, c.ID, r.ID, "u-sup-1")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	second, err := env.Engine.LinkReview(env.Ctx, c.ID, r.ID, "u-sup-1")
	if err != nil {
		t.Fatalf("relink: %v", err)
	}
	if len(first.LinkedReviews) != 1 || len(second.LinkedReviews) != 1 {
		t.Fatalf("linking twice must keep one entry, got %d", len(second.LinkedReviews))
	}
	if _, err := env.Engine.LinkReview(env.Ctx, c.ID, "no-existe", "u-sup-1"); err == nil {
		t.Fatalf("linking an unknown review must fail")
	}
}

func TestCalibrationVisibilityByRole(t *testing.T) {
	env := newTestEnv(t)
	mustCalibration(t, env, domain.CalibrationSupervisors, "u-sup-1")
	mgr, err := env.Engine.CreateCalibration(env.Ctx, engine.CalibrationCreateOptions{
		Type:           string(domain.CalibrationManagers),
		Title:          "Sesión de managers",
		ParticipantIDs: []string{"u-tl-1"},
		ActorID:        "u-sup-1",
	})
	if err != nil {
		t.Fatalf("create manager session: %v", err)
	}

	supSees, _ := env.Engine.ListCalibrations(env.Ctx, "u-sup-1")
	if len(supSees) != 1 || supSees[0].Type != domain.CalibrationSupervisors {
		t.Fatalf("supervisor sees only the supervisor track, got %d", len(supSees))
	}
	gerSees, _ := env.Engine.ListCalibrations(env.Ctx, "u-ger-1")
	if len(gerSees) != 1 || gerSees[0].Type != domain.CalibrationManagers {
		t.Fatalf("manager sees only the manager track, got %d", len(gerSees))
	}
	tlSees, _ := env.Engine.ListCalibrations(env.Ctx, "u-tl-1")
	if len(tlSees) != 1 || tlSees[0].ID != mgr.ID {
		t.Fatalf("team leader sees sessions they participate in, got %d", len(tlSees))
	}
	admSees, _ := env.Engine.ListCalibrations(env.Ctx, "u-adm-1")
	if len(admSees) != 2 {
		t.Fatalf("administrator sees every session, got %d", len(admSees))
	}
}

func TestRequeueCalibration(t *testing.T) {
	env := newTestEnv(t)
	c := mustCalibration(t, env, domain.CalibrationSupervisors, "u-sup-1")

	if _, err := env.Engine.RequeueCalibration(env.Ctx, c.ID, domain.QueueSupervision, "", "u-sup-1"); err == nil {
		t.Fatalf("same-queue move without reason must be rejected")
	}
	moved, err := env.Engine.RequeueCalibration(env.Ctx, c.ID, domain.QueueManagement, "revisión cruzada", "u-ger-1")
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if moved.Queue != domain.QueueManagement || moved.OwnerID != "u-ger-1" {
		t.Fatalf("queue and ownership must follow the move, got %s/%s", moved.Queue, moved.OwnerID)
	}
	if len(moved.Transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(moved.Transitions))
	}
}

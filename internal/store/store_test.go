package store_test

import (
	"errors"
	"testing"
	"time"

	"vigia/internal/domain"
	"vigia/internal/store"
)

func seedReview(t *testing.T, s *store.Store, id string) {
	t.Helper()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	err := s.InsertReview(&domain.Review{
		ID:        id,
		Status:    domain.StatusPending,
		Queue:     domain.QueueGeneral,
		OwnerID:   "u-1",
		Tags:      map[domain.Dimension]domain.TagLevel{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := store.New()
	seedReview(t, s, "r-1")

	snap, err := s.GetReview("r-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	snap.Queue = domain.QueueManagement
	snap.Tags[domain.DimensionOverall] = domain.TagHigh
	snap.Audit = append(snap.Audit, domain.AuditEntry{ID: "bogus"})

	fresh, _ := s.GetReview("r-1")
	if fresh.Queue != domain.QueueGeneral {
		t.Fatalf("snapshot mutation leaked into the store")
	}
	if len(fresh.Tags) != 0 || len(fresh.Audit) != 0 {
		t.Fatalf("snapshot maps/slices must be deep copies")
	}
}

func TestUpdateIsAtomic(t *testing.T) {
	s := store.New()
	seedReview(t, s, "r-1")

	boom := errors.New("boom")
	_, err := s.UpdateReview("r-1", func(r *domain.Review) error {
		r.Queue = domain.QueuePriority
		r.Audit = append(r.Audit, domain.AuditEntry{ID: "a-1"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	after, _ := s.GetReview("r-1")
	if after.Queue != domain.QueueGeneral || len(after.Audit) != 0 {
		t.Fatalf("failed update must leave no partial writes")
	}
}

func TestConcurrentUpdateFailsFast(t *testing.T) {
	s := store.New()
	seedReview(t, s, "r-1")

	_, err := s.UpdateReview("r-1", func(r *domain.Review) error {
		// Second writer while the lock is held.
		_, inner := s.UpdateReview("r-1", func(*domain.Review) error { return nil })
		if !errors.Is(inner, store.ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer update: %v", err)
	}
}

func TestInsertConflictAndNotFound(t *testing.T) {
	s := store.New()
	seedReview(t, s, "r-1")

	err := s.InsertReview(&domain.Review{ID: "r-1"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.GetReview("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateReview("missing", func(*domain.Review) error { return nil }); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRulesKeepInsertionOrder(t *testing.T) {
	s := store.New()
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		if err := s.AppendRule(domain.TransitionRule{ID: id, Name: id}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	got := s.ListRules()
	for i, id := range ids {
		if got[i].ID != id {
			t.Fatalf("rule order changed: %v", got)
		}
	}

	// Replace keeps position, delete compacts.
	if err := s.ReplaceRule(domain.TransitionRule{ID: "a", Name: "a2"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got = s.ListRules()
	if got[1].ID != "a" || got[1].Name != "a2" {
		t.Fatalf("replace must keep evaluation position: %v", got)
	}
	if err := s.DeleteRule("c"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got = s.ListRules()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("delete must preserve relative order: %v", got)
	}
	if err := s.AppendRule(domain.TransitionRule{ID: "a"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate rule id must conflict, got %v", err)
	}
}

func TestListReviewsSorted(t *testing.T) {
	s := store.New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"r-b", "r-a", "r-c"} {
		err := s.InsertReview(&domain.Review{ID: id, Queue: domain.QueueGeneral, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	got := s.ListReviews()
	if got[0].ID != "r-b" || got[1].ID != "r-a" || got[2].ID != "r-c" {
		t.Fatalf("reviews must sort by creation time: %v", []string{got[0].ID, got[1].ID, got[2].ID})
	}
}

func TestUserRosterKeepsOrder(t *testing.T) {
	s := store.New()
	s.PutUser(domain.User{ID: "z", Name: "Z"})
	s.PutUser(domain.User{ID: "a", Name: "A"})
	s.PutUser(domain.User{ID: "z", Name: "Z2"})

	users := s.ListUsers()
	if len(users) != 2 || users[0].ID != "z" || users[1].ID != "a" {
		t.Fatalf("roster must keep first-seen order: %v", users)
	}
	if users[0].Name != "Z2" {
		t.Fatalf("re-put must update in place")
	}
}

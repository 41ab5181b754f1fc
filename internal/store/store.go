// Package store owns all mutable engine state: reviews, calibration
// sessions, transition rules and the user roster. Reviews and calibrations
// are guarded by a per-element writer lock so the read-modify-append sequence
// of a transition can never interleave; reads hand out deep copies.
package store

import (
	"errors"
	"sort"
	"sync"

	"vigia/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrBusy signals another writer holds the element; callers fail fast
	// instead of queueing.
	ErrBusy = errors.New("element busy")
	// ErrConflict signals an insert with an id that already exists.
	ErrConflict = errors.New("already exists")
)

type reviewSlot struct {
	mu     sync.Mutex
	review *domain.Review
}

type calibrationSlot struct {
	mu  sync.Mutex
	cal *domain.CalibrationRecord
}

type Store struct {
	mu           sync.RWMutex
	reviews      map[string]*reviewSlot
	calibrations map[string]*calibrationSlot
	users        map[string]domain.User
	userOrder    []string
	// rules keep insertion order; the evaluator's tie-break depends on it.
	rules []domain.TransitionRule
}

func New() *Store {
	return &Store{
		reviews:      map[string]*reviewSlot{},
		calibrations: map[string]*calibrationSlot{},
		users:        map[string]domain.User{},
	}
}

// --- users (immutable reference data) ---

func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		s.userOrder = append(s.userOrder, u.ID)
	}
	s.users[u.ID] = u
}

func (s *Store) GetUser(id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (s *Store) ListUsers() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}
	return out
}

// --- reviews ---

func (s *Store) InsertReview(r *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[r.ID]; ok {
		return ErrConflict
	}
	s.reviews[r.ID] = &reviewSlot{review: r.Clone()}
	return nil
}

// GetReview returns a snapshot; mutating it never touches stored state.
func (s *Store) GetReview(id string) (*domain.Review, error) {
	s.mu.RLock()
	slot, ok := s.reviews[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.review.Clone(), nil
}

// UpdateReview runs fn on the live review under its writer lock and returns
// a snapshot of the result. A held lock surfaces ErrBusy. If fn errors the
// review is left untouched: fn receives a working copy and the swap only
// happens on success.
func (s *Store) UpdateReview(id string, fn func(*domain.Review) error) (*domain.Review, error) {
	s.mu.RLock()
	slot, ok := s.reviews[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !slot.mu.TryLock() {
		return nil, ErrBusy
	}
	defer slot.mu.Unlock()
	work := slot.review.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	slot.review = work
	return work.Clone(), nil
}

func (s *Store) ListReviews() []*domain.Review {
	s.mu.RLock()
	slots := make([]*reviewSlot, 0, len(s.reviews))
	for _, slot := range s.reviews {
		slots = append(slots, slot)
	}
	s.mu.RUnlock()
	out := make([]*domain.Review, 0, len(slots))
	for _, slot := range slots {
		slot.mu.Lock()
		out = append(out, slot.review.Clone())
		slot.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// --- calibration sessions ---

func (s *Store) InsertCalibration(c *domain.CalibrationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calibrations[c.ID]; ok {
		return ErrConflict
	}
	s.calibrations[c.ID] = &calibrationSlot{cal: c.Clone()}
	return nil
}

func (s *Store) GetCalibration(id string) (*domain.CalibrationRecord, error) {
	s.mu.RLock()
	slot, ok := s.calibrations[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.cal.Clone(), nil
}

func (s *Store) UpdateCalibration(id string, fn func(*domain.CalibrationRecord) error) (*domain.CalibrationRecord, error) {
	s.mu.RLock()
	slot, ok := s.calibrations[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !slot.mu.TryLock() {
		return nil, ErrBusy
	}
	defer slot.mu.Unlock()
	work := slot.cal.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	slot.cal = work
	return work.Clone(), nil
}

func (s *Store) ListCalibrations() []*domain.CalibrationRecord {
	s.mu.RLock()
	slots := make([]*calibrationSlot, 0, len(s.calibrations))
	for _, slot := range s.calibrations {
		slots = append(slots, slot)
	}
	s.mu.RUnlock()
	out := make([]*domain.CalibrationRecord, 0, len(slots))
	for _, slot := range slots {
		slot.mu.Lock()
		out = append(out, slot.cal.Clone())
		slot.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// --- transition rules ---

func (s *Store) AppendRule(r domain.TransitionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rules {
		if existing.ID == r.ID {
			return ErrConflict
		}
	}
	s.rules = append(s.rules, r)
	return nil
}

func (s *Store) GetRule(id string) (domain.TransitionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.TransitionRule{}, ErrNotFound
}

// ReplaceRule swaps a rule in place, keeping its position in the evaluation
// order.
func (s *Store) ReplaceRule(r domain.TransitionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.rules {
		if existing.ID == r.ID {
			s.rules[i] = r
			return nil
		}
	}
	return ErrNotFound
}

func (s *Store) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.rules {
		if existing.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ListRules returns the rules in evaluation order.
func (s *Store) ListRules() []domain.TransitionRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TransitionRule(nil), s.rules...)
}

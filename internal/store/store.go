package store

import (
	"dentcal/internal/model"
)

// Store is the in-memory cache of appointments for the visible week. It is
// the single authoritative client-side copy: fetch results replace it
// wholesale, gesture commits reconcile individual entries.
//
// The store performs no I/O and no rollback of its own; reverting a failed
// optimistic edit is the caller's job, using the gesture session's snapshot.
// It is not synchronized; the gesture controller serializes all access.
type Store struct {
	order []string
	byID  map[string]model.Appointment
}

func New() *Store {
	return &Store{byID: make(map[string]model.Appointment)}
}

// ReplaceAll swaps the entire contents for a freshly fetched list. Later
// duplicates by id win, so the invariant of one entry per id holds even for
// a dirty input list.
func (s *Store) ReplaceAll(appts []model.Appointment) {
	s.order = s.order[:0]
	s.byID = make(map[string]model.Appointment, len(appts))
	for _, a := range appts {
		s.Upsert(a)
	}
}

// Upsert inserts the appointment or replaces the entry with the same id.
func (s *Store) Upsert(a model.Appointment) {
	if _, exists := s.byID[a.ID]; !exists {
		s.order = append(s.order, a.ID)
	}
	s.byID[a.ID] = a
}

// Remove deletes the entry with the given id, reporting whether it existed.
func (s *Store) Remove(id string) bool {
	if _, exists := s.byID[id]; !exists {
		return false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Find returns the entry with the given id.
func (s *Store) Find(id string) (model.Appointment, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// All returns the entries in insertion order. The slice is a copy; mutating
// it does not affect the store.
func (s *Store) All() []model.Appointment {
	out := make([]model.Appointment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.byID)
}

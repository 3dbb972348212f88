package store

import (
	"testing"
	"time"

	"dentcal/internal/model"
)

func appt(id, label string) model.Appointment {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.Local)
	return model.Appointment{
		ID:     id,
		Label:  label,
		Start:  start,
		End:    start.Add(30 * time.Minute),
		Status: model.StatusUpcoming,
	}
}

func TestUpsertDeduplicatesByID(t *testing.T) {
	s := New()
	s.Upsert(appt("A1", "Cleaning"))
	s.Upsert(appt("A1", "Filling"))

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	got, ok := s.Find("A1")
	if !ok {
		t.Fatal("A1 missing after upsert")
	}
	if got.Label != "Filling" {
		t.Errorf("Label = %q, want latest fields %q", got.Label, "Filling")
	}
}

func TestRemove(t *testing.T) {
	s := New()
	s.Upsert(appt("A1", "Cleaning"))
	s.Upsert(appt("A2", "RCT"))

	if !s.Remove("A1") {
		t.Fatal("Remove(A1) = false, want true")
	}
	if s.Remove("A1") {
		t.Error("second Remove(A1) = true, want false")
	}
	if _, ok := s.Find("A1"); ok {
		t.Error("A1 still present after Remove")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestReplaceAll(t *testing.T) {
	s := New()
	s.Upsert(appt("A1", "Cleaning"))

	s.ReplaceAll([]model.Appointment{
		appt("B1", "Ortho"),
		appt("B2", "RCT"),
		appt("B1", "Ortho v2"), // duplicate id in a fetch result: later wins
	})

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if _, ok := s.Find("A1"); ok {
		t.Error("pre-fetch entry survived ReplaceAll")
	}
	got, _ := s.Find("B1")
	if got.Label != "Ortho v2" {
		t.Errorf("B1 label = %q, want %q", got.Label, "Ortho v2")
	}
}

func TestAllPreservesInsertionOrder(t *testing.T) {
	s := New()
	for _, id := range []string{"C", "A", "B"} {
		s.Upsert(appt(id, id))
	}
	s.Upsert(appt("A", "A again")) // replacement keeps position

	got := s.All()
	wantOrder := []string{"C", "A", "B"}
	if len(got) != len(wantOrder) {
		t.Fatalf("All returned %d entries, want %d", len(got), len(wantOrder))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("All()[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

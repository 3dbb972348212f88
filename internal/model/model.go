package model

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an appointment as stored remotely.
type Status string

const (
	StatusUpcoming  Status = "UPCOMING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

var (
	// ErrEndNotAfterStart is returned when an appointment's end instant does
	// not lie strictly after its start instant.
	ErrEndNotAfterStart = errors.New("appointment end must be after start")

	// ErrNotFound is the canonical "no such record" error for both the local
	// store and the remote gateway.
	ErrNotFound = errors.New("appointment not found")
)

// Appointment is the client-side view of a remote appointment record.
//
// ID is server-assigned and empty on drafts that have not been created yet.
// Label carries the treatment title / reason; different deployments name the
// underlying wire field differently ("title" vs "notes"), which the remote
// client collapses into this single field.
//
// Start and End are wall-clock instants in the host's local zone; the remote
// client converts to/from ISO-8601 at the boundary.
type Appointment struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	PatientID string    `json:"patient_id"`
	BranchID  string    `json:"branch_id"`
	Status    Status    `json:"status"`
}

// Duration returns the appointment's span.
func (a Appointment) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// Shift returns a copy with both ends moved by d. The span is unchanged.
func (a Appointment) Shift(d time.Duration) Appointment {
	a.Start = a.Start.Add(d)
	a.End = a.End.Add(d)
	return a
}

// Validate checks the invariants a record must satisfy before it is sent to
// the remote store.
func (a Appointment) Validate() error {
	if !a.End.After(a.Start) {
		return ErrEndNotAfterStart
	}
	if a.Status != "" && !a.Status.Valid() {
		return errors.New("unknown appointment status: " + string(a.Status))
	}
	return nil
}

// AppointmentDetail is the expanded record returned by a get-by-id: the
// list-view projection plus patient/branch references resolved to display
// names.
type AppointmentDetail struct {
	Appointment

	PatientName     string `json:"patient_name"`
	PatientCustomID string `json:"patient_custom_id"`
	BranchName      string `json:"branch_name"`
}

// Branch is a clinic location. Referenced by id, never mutated here.
type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Patient is a patient-record reference. Referenced by id, never mutated here.
type Patient struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CustomID string `json:"custom_id"`
}

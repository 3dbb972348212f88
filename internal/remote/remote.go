package remote

import (
	"context"
	"time"

	"dentcal/internal/model"
)

// Gateway is the boundary to the remote appointment store. The engine only
// ever talks to this interface; Client is the REST implementation and tests
// substitute fakes.
//
// All timestamps cross the boundary as ISO-8601 instants; implementations
// convert to the host's local wall clock on the way in.
type Gateway interface {
	// List returns the appointments whose start falls on the given calendar
	// date, filtered server-side.
	List(ctx context.Context, date time.Time) ([]model.Appointment, error)

	// Get returns the expanded record with patient/branch references
	// resolved to display names. A missing record yields model.ErrNotFound.
	Get(ctx context.Context, id string) (model.AppointmentDetail, error)

	// Create posts a draft and returns the server's representation,
	// including the assigned id.
	Create(ctx context.Context, appt model.Appointment) (model.Appointment, error)

	// Update patches the record and returns the server's representation,
	// which is authoritative for computed and display fields.
	Update(ctx context.Context, id string, appt model.Appointment) (model.Appointment, error)

	// Delete removes the record.
	Delete(ctx context.Context, id string) error

	// Branches lists the clinic branches for the create form.
	Branches(ctx context.Context) ([]model.Branch, error)

	// SearchPatients runs a server-side substring search over patient names.
	SearchPatients(ctx context.Context, term string) ([]model.Patient, error)
}

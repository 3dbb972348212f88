package gesture

import (
	"context"
	"fmt"
	"time"

	appLog "dentcal/internal/log"
	"dentcal/internal/model"
)

// Draft is the create panel's state: the pre-filled appointment fields plus
// whatever the last failed submit left behind. It lives only in memory and
// never touches the appointment cache until a create succeeds.
type Draft struct {
	Label     string       `json:"label"`
	Start     time.Time    `json:"start"`
	End       time.Time    `json:"end"`
	PatientID string       `json:"patient_id"`
	BranchID  string       `json:"branch_id"`
	Status    model.Status `json:"status"`
	Error     string       `json:"error,omitempty"`
}

// DraftForm is the submitted create form. Patient selection is required and
// validated locally before any network call.
type DraftForm struct {
	Label     string       `json:"label" validate:"max=128"`
	Start     time.Time    `json:"start" validate:"required"`
	End       time.Time    `json:"end" validate:"required"`
	PatientID string       `json:"patient_id" validate:"required"`
	BranchID  string       `json:"branch_id"`
	Status    model.Status `json:"status"`
}

// OpenDraft recognizes a double-click on an empty grid cell: the coordinate
// is hit-tested to a day column and half-hour slot, and a draft with the
// default 30-minute span starting at that slot is opened. Clicks above the
// header (or otherwise off the grid) open nothing. The appointment cache is
// not touched.
func (c *Controller) OpenDraft(x, y, gridWidth float64) (Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil || c.draft != nil {
		return Draft{}, ErrSessionActive
	}

	col, hour, minute, ok := c.grid.SlotAt(x, y, gridWidth)
	if !ok {
		return Draft{}, ErrNoSlot
	}

	day := c.cursor.Week()[col]
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())

	c.draft = &Draft{
		Start:  start,
		End:    start.Add(30 * time.Minute),
		Status: model.StatusUpcoming,
	}
	appLog.Debug("draft opened", "start", start.Format(time.RFC3339))
	return *c.draft, nil
}

// Draft returns the open create form, if any.
func (c *Controller) Draft() (Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft == nil {
		return Draft{}, false
	}
	return *c.draft, true
}

// Treatments returns the suggestion list for the create form's label field.
func (c *Controller) Treatments() []string {
	out := make([]string, len(c.treatments))
	copy(out, c.treatments)
	return out
}

// SubmitDraft validates the form locally and posts it to the remote store.
// On success the server's record (with its assigned id) is upserted into the
// cache and the panel closes. On any failure the panel stays open with the
// submitted fields intact and the error surfaced on the form.
func (c *Controller) SubmitDraft(ctx context.Context, form DraftForm) (model.Appointment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft == nil {
		return model.Appointment{}, ErrNoDraft
	}

	// Keep whatever was submitted so a failed attempt does not wipe the form.
	c.draft.Label = form.Label
	c.draft.Start = form.Start
	c.draft.End = form.End
	c.draft.PatientID = form.PatientID
	c.draft.BranchID = form.BranchID
	if form.Status != "" {
		c.draft.Status = form.Status
	}

	draft := model.Appointment{
		Label:     form.Label,
		Start:     form.Start,
		End:       form.End,
		PatientID: form.PatientID,
		BranchID:  form.BranchID,
		Status:    c.draft.Status,
	}

	if err := c.validate.Struct(form); err != nil {
		c.draft.Error = err.Error()
		return model.Appointment{}, fmt.Errorf("draft validation: %w", err)
	}
	if err := draft.Validate(); err != nil {
		c.draft.Error = err.Error()
		return model.Appointment{}, fmt.Errorf("draft validation: %w", err)
	}

	created, err := c.gateway.Create(ctx, draft)
	if err != nil {
		c.draft.Error = err.Error()
		appLog.Error("create failed; form kept open", err)
		return model.Appointment{}, err
	}

	c.store.Upsert(created)
	c.draft = nil
	appLog.Info("appointment created", "appt", created.ID)
	return created, nil
}

// CancelDraft discards the open form without side effects.
func (c *Controller) CancelDraft() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft == nil {
		return ErrNoDraft
	}
	c.draft = nil
	return nil
}

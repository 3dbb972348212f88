package gesture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"dentcal/internal/geometry"
	appLog "dentcal/internal/log"
	"dentcal/internal/model"
	"dentcal/internal/remote"
	"dentcal/internal/store"
	"dentcal/internal/week"
)

// Kind is the gesture being performed on an appointment block.
type Kind string

const (
	KindMove         Kind = "move"
	KindResizeTop    Kind = "resize-top"
	KindResizeBottom Kind = "resize-bottom"
)

var (
	// ErrSessionActive rejects a new interaction while one is in progress.
	ErrSessionActive = errors.New("a gesture session is already active")
	// ErrNoSession rejects move/up phases with no matching session.
	ErrNoSession = errors.New("no active gesture session")
	// ErrNoSlot rejects grid gestures that miss the grid (e.g. above the header).
	ErrNoSlot = errors.New("coordinate is outside the time grid")
	// ErrNoDraft rejects submit/cancel with no open create form.
	ErrNoDraft = errors.New("no draft appointment open")
)

// Session is the ephemeral record of one in-progress drag or resize. The
// token is issued on pointer-down and must be echoed by every subsequent
// phase, which pins the gesture to a single appointment and a single client.
// SnapStart/SnapEnd are the pre-gesture times, the delta origin for every
// move frame and the rollback target for a failed commit.
type Session struct {
	Token    string
	ApptID   string
	Kind     Kind
	InitialY float64

	SnapStart time.Time
	SnapEnd   time.Time
}

// Controller owns all mutable calendar state: the week cursor, the
// appointment cache, the single optional gesture session and the single
// optional draft form. Every mutation funnels through its methods under one
// mutex, which is the Go rendering of the original's single event loop: the
// cron refresh, the HTTP handlers and the gesture phases never interleave
// mid-mutation.
type Controller struct {
	mu sync.Mutex

	grid    geometry.Grid
	cursor  *week.Cursor
	store   *store.Store
	gateway remote.Gateway

	validate   *validator.Validate
	treatments []string

	session *Session
	draft   *Draft
}

// New wires a Controller. treatments seeds the create form's suggestion list.
func New(grid geometry.Grid, cursor *week.Cursor, gateway remote.Gateway, treatments []string) *Controller {
	return &Controller{
		grid:       grid,
		cursor:     cursor,
		store:      store.New(),
		gateway:    gateway,
		validate:   validator.New(),
		treatments: treatments,
	}
}

// LoadWeek re-fetches the visible week, one list call per visible date, and
// replaces the cache with the result. A failed date degrades to an empty
// column rather than failing the whole week; the joined error is returned so
// the caller can log it.
func (c *Controller) LoadWeek(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadWeekLocked(ctx)
}

func (c *Controller) loadWeekLocked(ctx context.Context) error {
	var (
		all  []model.Appointment
		errs []error
	)
	for _, date := range c.cursor.Week() {
		appts, err := c.gateway.List(ctx, date)
		if err != nil {
			errs = append(errs, err)
			appLog.Error("week fetch failed for date", err, "date", date.Format("2006-01-02"))
			continue
		}
		all = append(all, appts...)
	}
	c.store.ReplaceAll(all)
	appLog.Info("week loaded", "week_start", c.cursor.Start().Format("2006-01-02"),
		"appointments", c.store.Len(), "failed_dates", len(errs))
	return errors.Join(errs...)
}

// Navigate moves the cursor (prev/next/today) and reloads the week, since
// appointments are fetched per visible date range.
func (c *Controller) Navigate(ctx context.Context, dir week.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cursor.Navigate(dir); err != nil {
		return err
	}
	return c.loadWeekLocked(ctx)
}

// SetDate jumps the cursor to an arbitrary date and reloads the week.
func (c *Controller) SetDate(ctx context.Context, d time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cursor.SetDate(d)
	return c.loadWeekLocked(ctx)
}

// Week returns the current window's dates.
func (c *Controller) Week() [geometry.DaysPerWeek]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor.Week()
}

// Title returns the toolbar label for the current window.
func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor.Title()
}

// Appointments returns a stable copy of the cached week.
func (c *Controller) Appointments() []model.Appointment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.All()
}

// Find returns one cached appointment by id.
func (c *Controller) Find(id string) (model.Appointment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Find(id)
}

// PointerDown begins a drag or resize on the appointment with the given id.
// The vertical pointer coordinate decides the gesture: the top and bottom
// HandleHeight strips of the block resize the respective edge, the body
// drags the whole block. Returns the session token the client must echo on
// move and up.
func (c *Controller) PointerDown(apptID string, y float64) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil || c.draft != nil {
		return nil, ErrSessionActive
	}

	appt, ok := c.store.Find(apptID)
	if !ok {
		return nil, fmt.Errorf("pointer down on %q: %w", apptID, model.ErrNotFound)
	}
	rect, ok := c.grid.Place(appt.Start, appt.End, c.cursor.Week())
	if !ok {
		return nil, fmt.Errorf("pointer down on %q: block is not on the visible week", apptID)
	}

	var kind Kind
	switch c.grid.HitRegion(rect, y) {
	case geometry.RegionTop:
		kind = KindResizeTop
	case geometry.RegionBottom:
		kind = KindResizeBottom
	default:
		kind = KindMove
	}

	c.session = &Session{
		Token:     uuid.NewString(),
		ApptID:    apptID,
		Kind:      kind,
		InitialY:  y,
		SnapStart: appt.Start,
		SnapEnd:   appt.End,
	}
	appLog.Debug("gesture begin", "appt", apptID, "kind", string(kind))
	return c.sessionCopy(), nil
}

// PointerMove applies one frame of the active gesture. The pixel delta from
// the initial pointer position is converted to snapped minutes against the
// pre-gesture snapshot: a move shifts both ends so the duration is invariant,
// a resize shifts only its edge and keeps the previous frame whenever the
// edge would cross the opposite one. Each accepted frame is written to the
// store optimistically to drive live re-render.
func (c *Controller) PointerMove(token string, y float64) (model.Appointment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.activeSession(token)
	if err != nil {
		return model.Appointment{}, err
	}

	current, ok := c.store.Find(s.ApptID)
	if !ok {
		return model.Appointment{}, fmt.Errorf("gesture target %q: %w", s.ApptID, model.ErrNotFound)
	}

	delta := time.Duration(c.grid.SnapDelta(y-s.InitialY)) * time.Minute

	switch s.Kind {
	case KindMove:
		current.Start = s.SnapStart.Add(delta)
		current.End = s.SnapEnd.Add(delta)
	case KindResizeTop:
		ns := s.SnapStart.Add(delta)
		if !ns.Before(current.End) {
			// Reject the frame; the previous valid value stays on screen.
			return current, nil
		}
		current.Start = ns
	case KindResizeBottom:
		ne := s.SnapEnd.Add(delta)
		if !ne.After(current.Start) {
			return current, nil
		}
		current.End = ne
	}

	c.store.Upsert(current)
	return current, nil
}

// PointerUp commits the active gesture: the final span is PATCHed to the
// remote store and the cache entry is reconciled with the server's returned
// representation. On a remote failure the pre-gesture snapshot is restored
// into the cache so client and server do not silently diverge. Either way
// the session is cleared and the controller returns to idle.
func (c *Controller) PointerUp(ctx context.Context, token string) (model.Appointment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.activeSession(token)
	if err != nil {
		return model.Appointment{}, err
	}
	c.session = nil

	current, ok := c.store.Find(s.ApptID)
	if !ok {
		return model.Appointment{}, fmt.Errorf("gesture target %q: %w", s.ApptID, model.ErrNotFound)
	}

	updated, err := c.gateway.Update(ctx, current.ID, current)
	if err != nil {
		// Roll back to the snapshot rather than leaving the optimistic span
		// on screen until the next full re-fetch.
		current.Start = s.SnapStart
		current.End = s.SnapEnd
		c.store.Upsert(current)
		appLog.Warn("gesture commit failed; snapshot restored",
			"appt", current.ID, "kind", string(s.Kind), "err", err)
		return current, err
	}

	c.store.Upsert(updated)
	appLog.Debug("gesture committed", "appt", updated.ID, "kind", string(s.Kind))
	return updated, nil
}

// Delete removes the appointment remotely and then from the cache. Exactly
// one delete call is issued; the cache is only touched after it succeeds.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.gateway.Delete(ctx, id); err != nil {
		appLog.Error("delete failed", err, "appt", id)
		return err
	}
	c.store.Remove(id)
	appLog.Info("appointment deleted", "appt", id)
	return nil
}

// Detail fetches the expanded record via get-by-id, picking up resolved
// patient/branch names that the list-view projection lacks.
func (c *Controller) Detail(ctx context.Context, id string) (model.AppointmentDetail, error) {
	// No lock: the read does not touch controller state and may run while a
	// popup is open over an idle grid.
	return c.gateway.Get(ctx, id)
}

// Branches passes a branch-list lookup through to the gateway for the
// create form.
func (c *Controller) Branches(ctx context.Context) ([]model.Branch, error) {
	return c.gateway.Branches(ctx)
}

// SearchPatients passes a patient search through to the gateway for the
// create form.
func (c *Controller) SearchPatients(ctx context.Context, term string) ([]model.Patient, error) {
	return c.gateway.SearchPatients(ctx, term)
}

// activeSession validates that a session exists and the caller holds its
// token. Callers hold c.mu.
func (c *Controller) activeSession(token string) (*Session, error) {
	if c.session == nil {
		return nil, ErrNoSession
	}
	if token == "" || token != c.session.Token {
		return nil, fmt.Errorf("token mismatch: %w", ErrNoSession)
	}
	return c.session, nil
}

func (c *Controller) sessionCopy() *Session {
	if c.session == nil {
		return nil
	}
	cp := *c.session
	return &cp
}

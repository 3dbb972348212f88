package week

import (
	"errors"
	"time"

	"dentcal/internal/geometry"
)

// Direction is a navigation command for the cursor.
type Direction string

const (
	Prev  Direction = "prev"
	Next  Direction = "next"
	Today Direction = "today"
)

// ErrUnknownDirection is returned by Navigate for anything other than
// prev/next/today.
var ErrUnknownDirection = errors.New("unknown navigation direction")

// Cursor holds the current anchor date and derives the Sunday-anchored
// 7-date window containing it. The window is recomputed on demand and never
// stored; callers must re-fetch appointment data whenever the effective week
// changes.
type Cursor struct {
	anchor time.Time
	now    func() time.Time
}

// New returns a Cursor anchored at the current wall-clock date. now may be
// nil, in which case time.Now is used; tests inject a fixed clock.
func New(now func() time.Time) *Cursor {
	if now == nil {
		now = time.Now
	}
	return &Cursor{anchor: now(), now: now}
}

// Date returns the current anchor date.
func (c *Cursor) Date() time.Time {
	return c.anchor
}

// SetDate replaces the anchor date.
func (c *Cursor) SetDate(d time.Time) {
	c.anchor = d
}

// Start returns the midnight of the Sunday on or before the anchor.
func (c *Cursor) Start() time.Time {
	d := c.anchor
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// Week returns the window's seven consecutive calendar dates, as local
// midnights, strictly ascending from Start.
func (c *Cursor) Week() [geometry.DaysPerWeek]time.Time {
	var out [geometry.DaysPerWeek]time.Time
	start := c.Start()
	for i := range out {
		// AddDate moves by calendar days, so the window stays aligned across
		// DST transitions.
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

// Navigate shifts the anchor: prev/next move by exactly 7 calendar days,
// today resets to the current wall-clock date.
func (c *Cursor) Navigate(dir Direction) error {
	switch dir {
	case Prev:
		c.anchor = c.anchor.AddDate(0, 0, -7)
	case Next:
		c.anchor = c.anchor.AddDate(0, 0, 7)
	case Today:
		c.anchor = c.now()
	default:
		return ErrUnknownDirection
	}
	return nil
}

// Title renders the window's date range for the toolbar, e.g.
// "Mar 1 - Mar 7, 2026".
func (c *Cursor) Title() string {
	w := c.Week()
	return w[0].Format("Jan 2") + " - " + w[geometry.DaysPerWeek-1].Format("Jan 2, 2006")
}

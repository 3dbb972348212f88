package week

import (
	"testing"
	"time"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestWeekShape(t *testing.T) {
	// A Wednesday mid-afternoon.
	anchor := time.Date(2026, 3, 4, 15, 30, 0, 0, time.Local)
	c := New(fixedNow(anchor))

	w := c.Week()
	if w[0].Weekday() != time.Sunday {
		t.Errorf("week starts on %v, want Sunday", w[0].Weekday())
	}
	for i, d := range w {
		if d.Hour() != 0 || d.Minute() != 0 {
			t.Errorf("week[%d] = %v, want a midnight", i, d)
		}
		if i > 0 {
			prev := w[i-1]
			if !d.After(prev) {
				t.Errorf("week[%d] (%v) not after week[%d] (%v)", i, d, i-1, prev)
			}
			if d.YearDay() != prev.AddDate(0, 0, 1).YearDay() {
				t.Errorf("week[%d] not one calendar day after week[%d]", i, i-1)
			}
		}
	}
	if w[0].Day() != 1 || w[0].Month() != time.March {
		t.Errorf("week[0] = %v, want 2026-03-01", w[0])
	}
}

func TestNavigateRoundTrip(t *testing.T) {
	anchor := time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local)
	c := New(fixedNow(anchor))

	if err := c.Navigate(Next); err != nil {
		t.Fatal(err)
	}
	if err := c.Navigate(Prev); err != nil {
		t.Fatal(err)
	}

	got := c.Date()
	if got.Year() != anchor.Year() || got.Month() != anchor.Month() || got.Day() != anchor.Day() {
		t.Errorf("next+prev landed on %v, want same calendar day as %v", got, anchor)
	}
}

func TestNavigateToday(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.Local)
	c := New(fixedNow(now))

	c.SetDate(time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local))
	if err := c.Navigate(Today); err != nil {
		t.Fatal(err)
	}
	if c.Date() != now {
		t.Errorf("today reset to %v, want %v", c.Date(), now)
	}
}

func TestNavigateUnknown(t *testing.T) {
	c := New(fixedNow(time.Now()))
	if err := c.Navigate("sideways"); err == nil {
		t.Error("Navigate accepted an unknown direction")
	}
}

func TestNavigateMovesSevenCalendarDays(t *testing.T) {
	anchor := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)
	c := New(fixedNow(anchor))

	if err := c.Navigate(Prev); err != nil {
		t.Fatal(err)
	}
	want := anchor.AddDate(0, 0, -7)
	if !c.Date().Equal(want) {
		t.Errorf("prev landed on %v, want %v", c.Date(), want)
	}
}

func TestTitle(t *testing.T) {
	anchor := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)
	c := New(fixedNow(anchor))

	if got, want := c.Title(), "Mar 1 - Mar 7, 2026"; got != want {
		t.Errorf("Title() = %q, want %q", got, want)
	}
}

package ics

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"dentcal/internal/blocked"
	"dentcal/internal/geometry"
	"dentcal/internal/model"
)

const prodID = "-//dentcal//week export//EN"

// ExportWeek renders the visible week as an iCalendar payload so the clinic
// schedule can be pulled into a phone or an external calendar. One VEVENT
// per appointment whose start date falls inside the window; cancelled
// appointments are kept but marked STATUS:CANCELLED. Blocked slots export as
// transparent busy markers.
func ExportWeek(week [geometry.DaysPerWeek]time.Time, appts []model.Appointment, slots []blocked.Slot) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	for _, a := range appts {
		if !inWeek(a.Start, week) {
			continue
		}
		ev := cal.AddEvent(a.ID)
		ev.SetSummary(a.Label)
		ev.SetStartAt(a.Start)
		ev.SetEndAt(a.End)
		ev.SetDtStampTime(time.Now())
		switch a.Status {
		case model.StatusCancelled:
			ev.SetStatus(ical.ObjectStatusCancelled)
		default:
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
	}

	for i, s := range slots {
		ev := cal.AddEvent(blockedUID(i, s))
		ev.SetSummary(s.Label)
		ev.SetStartAt(s.Start)
		ev.SetEndAt(s.End)
		ev.SetDtStampTime(time.Now())
		ev.SetTimeTransparency(ical.TransparencyTransparent)
	}

	return cal.Serialize()
}

func blockedUID(i int, s blocked.Slot) string {
	return "blocked-" + s.Start.UTC().Format("20060102T150405Z") + "-" + strconv.Itoa(i)
}

func inWeek(t time.Time, week [geometry.DaysPerWeek]time.Time) bool {
	for _, d := range week {
		if d.Year() == t.Year() && d.Month() == t.Month() && d.Day() == t.Day() {
			return true
		}
	}
	return false
}

package ics

import (
	"strings"
	"testing"
	"time"

	"dentcal/internal/blocked"
	"dentcal/internal/geometry"
	"dentcal/internal/model"
)

func testWeek() [geometry.DaysPerWeek]time.Time {
	var week [geometry.DaysPerWeek]time.Time
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	for i := range week {
		week[i] = start.AddDate(0, 0, i)
	}
	return week
}

func TestExportWeek(t *testing.T) {
	week := testWeek()
	tue := time.Date(2026, 3, 3, 9, 0, 0, 0, time.Local)

	appts := []model.Appointment{
		{ID: "A1", Label: "Cleaning", Start: tue, End: tue.Add(30 * time.Minute), Status: model.StatusUpcoming},
		{ID: "A2", Label: "RCT", Start: tue.Add(2 * time.Hour), End: tue.Add(3 * time.Hour), Status: model.StatusCancelled},
		// Outside the window: must not be exported.
		{ID: "A3", Label: "Ortho", Start: tue.AddDate(0, 0, 10), End: tue.AddDate(0, 0, 10).Add(time.Hour), Status: model.StatusUpcoming},
	}
	slots := []blocked.Slot{
		{Label: "Lunch", Start: tue.Add(4 * time.Hour), End: tue.Add(5 * time.Hour)},
	}

	out := ExportWeek(week, appts, slots)

	if !strings.Contains(out, "BEGIN:VCALENDAR") || !strings.Contains(out, "END:VCALENDAR") {
		t.Fatal("output is not a VCALENDAR")
	}
	if !strings.Contains(out, "UID:A1") || !strings.Contains(out, "SUMMARY:Cleaning") {
		t.Error("A1 missing from export")
	}
	if !strings.Contains(out, "STATUS:CANCELLED") {
		t.Error("cancelled appointment not marked STATUS:CANCELLED")
	}
	if strings.Contains(out, "UID:A3") {
		t.Error("appointment outside the window was exported")
	}
	if !strings.Contains(out, "SUMMARY:Lunch") || !strings.Contains(out, "TRANSP:TRANSPARENT") {
		t.Error("blocked slot not exported as a transparent event")
	}
}

func TestExportEmptyWeek(t *testing.T) {
	out := ExportWeek(testWeek(), nil, nil)
	if !strings.Contains(out, "BEGIN:VCALENDAR") {
		t.Fatal("empty export is not a VCALENDAR")
	}
	if strings.Contains(out, "BEGIN:VEVENT") {
		t.Error("empty week produced events")
	}
}

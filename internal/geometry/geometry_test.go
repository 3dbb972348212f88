package geometry

import (
	"testing"
	"time"
)

func testWeek(t *testing.T) [DaysPerWeek]time.Time {
	t.Helper()
	// Sunday 2026-03-01 through Saturday 2026-03-07.
	var week [DaysPerWeek]time.Time
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	for i := range week {
		week[i] = start.AddDate(0, 0, i)
	}
	return week
}

func TestTimeToYRoundTrip(t *testing.T) {
	g := New(40, 60, 5)
	for hour := 0; hour < 24; hour++ {
		for _, minute := range []int{0, 30} {
			y := g.TimeToY(hour, minute)
			gotH, gotM, ok := g.YToTime(y)
			if !ok {
				t.Fatalf("YToTime(%v) rejected for %02d:%02d", y, hour, minute)
			}
			if gotH != hour || gotM != minute {
				t.Errorf("round trip %02d:%02d -> y=%v -> %02d:%02d", hour, minute, y, gotH, gotM)
			}
		}
	}
}

func TestYToTimeFloorsWithinSlot(t *testing.T) {
	g := New(40, 60, 5)
	// Any offset inside the 09:00 cell maps to 09:00, not to the nearest slot.
	base := g.TimeToY(9, 0)
	for _, off := range []float64{0, 1, 19.5, 39} {
		h, m, ok := g.YToTime(base + off)
		if !ok || h != 9 || m != 0 {
			t.Errorf("YToTime(%v) = %d:%02d ok=%v, want 9:00", base+off, h, m, ok)
		}
	}
}

func TestYToTimeRejectsOutsideGrid(t *testing.T) {
	g := New(40, 60, 5)
	cases := []struct {
		name string
		y    float64
	}{
		{"above header", 0},
		{"just above grid", 59.9},
		{"below last slot", float64(g.Height())},
	}
	for _, tc := range cases {
		if _, _, ok := g.YToTime(tc.y); ok {
			t.Errorf("%s: YToTime(%v) accepted, want reject", tc.name, tc.y)
		}
	}
}

func TestSnapDeltaMultipleOfSnap(t *testing.T) {
	g := New(40, 60, 5)
	for dy := -500.0; dy <= 500.0; dy += 7.3 {
		delta := g.SnapDelta(dy)
		if delta%5 != 0 {
			t.Fatalf("SnapDelta(%v) = %d, not a multiple of 5", dy, delta)
		}
	}
}

func TestSnapDeltaScenarios(t *testing.T) {
	g := New(40, 60, 5)
	cases := []struct {
		dy   float64
		want int
	}{
		{0, 0},
		{80, 60},  // two half-hour cells down
		{-80, -60},
		{40, 30},
		{7, 5},   // 5.25 raw minutes snaps to 5
		{3, 0},   // 2.25 raw minutes snaps to 0
		{-7, -5},
	}
	for _, tc := range cases {
		if got := g.SnapDelta(tc.dy); got != tc.want {
			t.Errorf("SnapDelta(%v) = %d, want %d", tc.dy, got, tc.want)
		}
	}
}

func TestColumnForX(t *testing.T) {
	g := New(40, 60, 5)
	const width = 700.0
	cases := []struct {
		x      float64
		want   int
		wantOK bool
	}{
		{0, 0, true},
		{99.9, 0, true},
		{100, 1, true},
		{650, 6, true},
		{699.9, 6, true},
		{700, 0, false},
		{-1, 0, false},
	}
	for _, tc := range cases {
		got, ok := g.ColumnForX(tc.x, width)
		if ok != tc.wantOK || (ok && got != tc.want) {
			t.Errorf("ColumnForX(%v) = (%d, %v), want (%d, %v)", tc.x, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestSlotAtCreateScenario(t *testing.T) {
	// Double-click at day column 2, three half-hour cells below the header
	// lands on Tuesday 01:30.
	g := New(40, 60, 5)
	const width = 700.0
	x := width / 7 * 2.5
	y := float64(60 + 3*40)

	col, hour, minute, ok := g.SlotAt(x, y, width)
	if !ok {
		t.Fatal("SlotAt rejected an in-grid coordinate")
	}
	if col != 2 || hour != 1 || minute != 30 {
		t.Errorf("SlotAt = col=%d %02d:%02d, want col=2 01:30", col, hour, minute)
	}
}

func TestDateColumn(t *testing.T) {
	g := New(40, 60, 5)
	week := testWeek(t)

	// Tuesday of that week, any time of day.
	tue := time.Date(2026, 3, 3, 14, 45, 0, 0, time.Local)
	col, ok := g.DateColumn(tue, week)
	if !ok || col != 2 {
		t.Errorf("DateColumn(tuesday) = (%d, %v), want (2, true)", col, ok)
	}

	// A date outside the window is not a geometry error, just absent.
	if _, ok := g.DateColumn(time.Date(2026, 3, 9, 0, 0, 0, 0, time.Local), week); ok {
		t.Error("DateColumn accepted a date outside the week window")
	}
}

func TestPlace(t *testing.T) {
	g := New(40, 60, 5)
	week := testWeek(t)

	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.Local)
	end := start.Add(90 * time.Minute)

	rect, ok := g.Place(start, end, week)
	if !ok {
		t.Fatal("Place rejected an in-week appointment")
	}
	if rect.Col != 2 {
		t.Errorf("Col = %d, want 2", rect.Col)
	}
	if want := g.TimeToY(9, 0); rect.Top != want {
		t.Errorf("Top = %v, want %v", rect.Top, want)
	}
	if want := 1.5 * float64(g.HourHeight()); rect.Height != want {
		t.Errorf("Height = %v, want %v", rect.Height, want)
	}

	// Appointment starting outside the window is not drawn.
	off := start.AddDate(0, 0, 7)
	if _, ok := g.Place(off, off.Add(time.Hour), week); ok {
		t.Error("Place accepted an appointment outside the week window")
	}
}

func TestHitRegion(t *testing.T) {
	g := New(40, 60, 5)
	rect := Rect{Col: 0, Top: 100, Height: 40}

	cases := []struct {
		y    float64
		want Region
	}{
		{100, RegionTop},
		{105.9, RegionTop},
		{106, RegionBody},
		{120, RegionBody},
		{133.9, RegionBody},
		{134, RegionBottom},
		{139, RegionBottom},
	}
	for _, tc := range cases {
		if got := g.HitRegion(rect, tc.y); got != tc.want {
			t.Errorf("HitRegion(y=%v) = %v, want %v", tc.y, got, tc.want)
		}
	}
}

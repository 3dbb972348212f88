package geometry

import (
	"math"
	"time"
)

const (
	// DaysPerWeek is the number of columns in the week grid.
	DaysPerWeek = 7
	// SlotsPerDay is the number of half-hour rows per day column.
	SlotsPerDay = 48
	// HandleHeight is the height in pixels of the resize strips at the top
	// and bottom edges of an appointment block.
	HandleHeight = 6
)

// Region identifies which visual sub-region of an appointment block a
// pointer coordinate falls in. The strips decide drag vs. resize.
type Region int

const (
	RegionBody Region = iota
	RegionTop
	RegionBottom
)

// Grid converts between wall-clock time and pixel geometry on the week view.
// All methods are pure; a Grid is safe for concurrent use.
type Grid struct {
	// HalfHourHeight is the pixel height of one 30-minute cell.
	HalfHourHeight int
	// HeaderHeight is the pixel height of the day-header strip. Pointer
	// coordinates above it belong to no slot.
	HeaderHeight int
	// SnapMinutes is the snapping granularity for gesture deltas.
	SnapMinutes int
}

// New returns a Grid with zero fields replaced by the stock layout
// (40px half-hour cells, 60px header, 5-minute snapping).
func New(halfHourHeight, headerHeight, snapMinutes int) Grid {
	if halfHourHeight <= 0 {
		halfHourHeight = 40
	}
	if headerHeight <= 0 {
		headerHeight = 60
	}
	if snapMinutes <= 0 {
		snapMinutes = 5
	}
	return Grid{
		HalfHourHeight: halfHourHeight,
		HeaderHeight:   headerHeight,
		SnapMinutes:    snapMinutes,
	}
}

// HourHeight is the pixel height of a full hour row.
func (g Grid) HourHeight() int {
	return 2 * g.HalfHourHeight
}

// Height is the total pixel height of the grid including the header.
func (g Grid) Height() int {
	return g.HeaderHeight + SlotsPerDay*g.HalfHourHeight
}

// TimeToY maps a wall-clock time of day to the vertical pixel offset of that
// instant on the grid.
func (g Grid) TimeToY(hour, minute int) float64 {
	mins := hour*60 + minute
	return float64(g.HeaderHeight) + float64(mins)/30.0*float64(g.HalfHourHeight)
}

// YToTime is the inverse of TimeToY at half-hour resolution: it maps a
// vertical pixel offset to the slot it visually falls in, flooring rather
// than rounding. Offsets above the header or below the last slot map to no
// slot (ok=false); they are rejected, never clamped.
func (g Grid) YToTime(y float64) (hour, minute int, ok bool) {
	rel := y - float64(g.HeaderHeight)
	if rel < 0 {
		return 0, 0, false
	}
	slot := int(math.Floor(rel / float64(g.HalfHourHeight)))
	if slot >= SlotsPerDay {
		return 0, 0, false
	}
	return slot / 2, (slot % 2) * 30, true
}

// DateColumn locates date within the week window by exact (year, month, day)
// match. A date outside the window is the caller's error, reported via
// ok=false rather than a panic.
func (g Grid) DateColumn(date time.Time, week [DaysPerWeek]time.Time) (int, bool) {
	for i, d := range week {
		if sameDay(d, date) {
			return i, true
		}
	}
	return 0, false
}

// ColumnForX maps a horizontal pixel offset to a day column, assuming
// DaysPerWeek equal-width columns across gridWidth.
func (g Grid) ColumnForX(x, gridWidth float64) (int, bool) {
	if gridWidth <= 0 || x < 0 || x >= gridWidth {
		return 0, false
	}
	col := int(math.Floor(x / (gridWidth / DaysPerWeek)))
	if col >= DaysPerWeek {
		col = DaysPerWeek - 1
	}
	return col, true
}

// SlotAt hit-tests a pointer coordinate against the grid, returning the day
// column and the half-hour slot it falls in.
func (g Grid) SlotAt(x, y, gridWidth float64) (col, hour, minute int, ok bool) {
	col, ok = g.ColumnForX(x, gridWidth)
	if !ok {
		return 0, 0, 0, false
	}
	hour, minute, ok = g.YToTime(y)
	if !ok {
		return 0, 0, 0, false
	}
	return col, hour, minute, true
}

// SnapDelta converts a vertical pixel delta into a minute delta: pixel
// movement is scaled to half-hour minutes and then snapped to the nearest
// SnapMinutes boundary. The result is always a multiple of SnapMinutes.
func (g Grid) SnapDelta(dy float64) int {
	raw := dy / float64(g.HalfHourHeight) * 30.0
	return int(math.Round(raw/float64(g.SnapMinutes))) * g.SnapMinutes
}

// Rect is the drawing rectangle of one appointment block. Left/Width are
// expressed as a column index since the grid columns are equal-width; Top
// and Height are in pixels.
type Rect struct {
	Col    int     `json:"col"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Place computes the rectangle for an appointment spanning [start,end) on
// the given week window. ok=false when the start date is not one of the
// window's seven dates, in which case the block is simply not drawn.
// Overlapping appointments yield overlapping rectangles; there is no
// collision layout.
func (g Grid) Place(start, end time.Time, week [DaysPerWeek]time.Time) (Rect, bool) {
	col, ok := g.DateColumn(start, week)
	if !ok {
		return Rect{}, false
	}
	top := g.TimeToY(start.Hour(), start.Minute())
	hours := end.Sub(start).Hours()
	return Rect{
		Col:    col,
		Top:    top,
		Height: hours * float64(g.HourHeight()),
	}, true
}

// HitRegion resolves which sub-region of a block the pointer hit: the top
// HandleHeight pixels resize the start, the bottom HandleHeight pixels
// resize the end, anything else drags the whole block.
func (g Grid) HitRegion(rect Rect, y float64) Region {
	switch {
	case y < rect.Top+HandleHeight:
		return RegionTop
	case y >= rect.Top+rect.Height-HandleHeight:
		return RegionBottom
	default:
		return RegionBody
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

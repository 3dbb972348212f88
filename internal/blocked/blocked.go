package blocked

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"dentcal/internal/config"
	"dentcal/internal/geometry"
	appLog "dentcal/internal/log"
)

// Slot is one concrete blocked period inside the visible week, drawn as a
// grey rectangle behind appointments. Purely visual: the engine does not
// prevent appointments from landing inside a blocked slot.
type Slot struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlay expands the configured recurring blocked periods (lunch breaks,
// weekly closures) into concrete slots for a week window. Rules are RFC 5545
// RRULE strings whose DTSTART supplies the time of day.
type Overlay struct {
	rules []config.BlockedConfig
}

func New(rules []config.BlockedConfig) *Overlay {
	return &Overlay{rules: rules}
}

// Expand evaluates every rule over [week[0], week[6]+1d). A rule that fails
// to parse is logged and skipped rather than hiding the others. Slots are
// returned sorted by start, converted into the window's timezone.
func (o *Overlay) Expand(week [geometry.DaysPerWeek]time.Time) []Slot {
	rangeStart := week[0]
	rangeEnd := week[geometry.DaysPerWeek-1].AddDate(0, 0, 1)
	loc := rangeStart.Location()

	out := make([]Slot, 0)
	for _, rule := range o.rules {
		set, err := rrule.StrToRRuleSet(rule.Rule)
		if err != nil {
			appLog.Error("blocked rule parse failed; skipping", err, "label", rule.Label)
			continue
		}

		dur := time.Duration(rule.DurationMinutes) * time.Minute
		if dur <= 0 {
			appLog.Error("blocked rule has no duration; skipping",
				errors.New("duration_minutes must be positive"), "label", rule.Label)
			continue
		}

		for _, start := range set.Between(rangeStart.Add(-dur), rangeEnd, true) {
			localStart := start.In(loc)
			end := localStart.Add(dur)
			// Keep only slots that actually intersect the window.
			if !end.After(rangeStart) || !localStart.Before(rangeEnd) {
				continue
			}
			out = append(out, Slot{Label: rule.Label, Start: localStart, End: end})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

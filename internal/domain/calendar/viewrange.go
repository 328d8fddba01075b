package calendar

import (
	"fmt"
	"strings"
	"time"
)

type ViewMode string

const (
	ViewModeWeek   ViewMode = "week"
	ViewModeMonth  ViewMode = "month"
	ViewModeAgenda ViewMode = "agenda"
)

// AgendaDays is how many days past the pivot day the agenda view covers.
const AgendaDays = 14

func IsValidViewMode(m ViewMode) bool {
	switch m {
	case ViewModeWeek, ViewModeMonth, ViewModeAgenda:
		return true
	}
	return false
}

// Range is the half-open interval [From, To).
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Last returns the final second inside the range.
func (r Range) Last() time.Time {
	return r.To.Add(-time.Second)
}

// Contains reports whether t falls inside [From, To).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Days enumerates the calendar days of the range.
func (r Range) Days() []time.Time {
	var days []time.Time
	for d := startOfDay(r.From); d.Before(r.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DayCount is the number of calendar days in the range.
func (r Range) DayCount() int {
	return len(r.Days())
}

// Label renders the header text for a view.
func (r Range) Label(mode ViewMode, pivot time.Time) string {
	switch mode {
	case ViewModeMonth:
		return pivot.Format("January 2006")
	default:
		last := r.Last()
		if r.From.Year() != last.Year() {
			return fmt.Sprintf("%s - %s", r.From.Format("Jan 2, 2006"), last.Format("Jan 2, 2006"))
		}
		return fmt.Sprintf("%s - %s", r.From.Format("Jan 2"), last.Format("Jan 2, 2006"))
	}
}

// ComputeRange returns the visible range for a pivot date and view mode.
// All arithmetic happens in the pivot's location on calendar days, so DST
// transitions never shift day boundaries.
func ComputeRange(pivot time.Time, mode ViewMode, weekStart time.Weekday) (Range, error) {
	day := startOfDay(pivot)

	switch mode {
	case ViewModeWeek:
		from := startOfWeek(day, weekStart)
		return Range{From: from, To: from.AddDate(0, 0, 7)}, nil

	case ViewModeMonth:
		first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		last := first.AddDate(0, 1, -1)
		from := startOfWeek(first, weekStart)
		to := startOfWeek(last, weekStart).AddDate(0, 0, 7)
		return Range{From: from, To: to}, nil

	case ViewModeAgenda:
		return Range{From: day, To: day.AddDate(0, 0, AgendaDays+1)}, nil
	}

	return Range{}, ErrInvalidViewMode
}

// ParseWeekday accepts "sunday"/"monday" style names; anything else yields Sunday.
func ParseWeekday(name string) time.Weekday {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "monday", "mon":
		return time.Monday
	case "tuesday", "tue":
		return time.Tuesday
	case "wednesday", "wed":
		return time.Wednesday
	case "thursday", "thu":
		return time.Thursday
	case "friday", "fri":
		return time.Friday
	case "saturday", "sat":
		return time.Saturday
	default:
		return time.Sunday
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfWeek(day time.Time, weekStart time.Weekday) time.Time {
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return startOfDay(day).AddDate(0, 0, -offset)
}

// DayKey formats the day-column key used by the view model and drag sessions.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

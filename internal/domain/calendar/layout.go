package calendar

import (
	"math"
	"sort"
	"time"
)

// LayoutConfig holds the vertical geometry of a day column.
type LayoutConfig struct {
	HourHeight   float64 `json:"hour_height"`
	DayStartHour int     `json:"day_start_hour"`
	DayEndHour   int     `json:"day_end_hour"`
	MinHeight    float64 `json:"min_height"`
	Gap          float64 `json:"gap"`
}

func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		HourHeight:   48,
		DayStartHour: 0,
		DayEndHour:   24,
		MinHeight:    18,
		Gap:          2,
	}
}

// Normalize fills zero or out-of-range values with defaults.
func (c LayoutConfig) Normalize() LayoutConfig {
	def := DefaultLayoutConfig()
	if c.HourHeight <= 0 {
		c.HourHeight = def.HourHeight
	}
	if c.DayStartHour < 0 || c.DayStartHour > 23 {
		c.DayStartHour = def.DayStartHour
	}
	if c.DayEndHour <= c.DayStartHour || c.DayEndHour > 24 {
		c.DayEndHour = def.DayEndHour
	}
	if c.MinHeight < 0 {
		c.MinHeight = 0
	}
	if c.Gap < 0 {
		c.Gap = 0
	}
	return c
}

// DayMinutes is the number of visible minutes in a day column.
func (c LayoutConfig) DayMinutes() int {
	return (c.DayEndHour - c.DayStartHour) * 60
}

// DayHeight is the pixel height of a day column.
func (c LayoutConfig) DayHeight() float64 {
	return float64(c.DayEndHour-c.DayStartHour) * c.HourHeight
}

// Block is one laid-out timed event segment within a day.
type Block struct {
	Event  Event     `json:"event"`
	Start  time.Time `json:"segment_start"`
	End    time.Time `json:"segment_end"`
	Top    float64   `json:"top"`
	Height float64   `json:"height"`
}

// Bottom returns Top + Height.
func (b Block) Bottom() float64 {
	return b.Top + b.Height
}

// LayoutDay positions the timed events touching day in a single cascading
// lane: an event that would overlap the previous one is pushed below it.
// Events spanning several days are clipped to this day.
func LayoutDay(day time.Time, events []Event, cfg LayoutConfig) []Block {
	cfg = cfg.Normalize()
	midnight := startOfDay(day)
	nextMidnight := midnight.AddDate(0, 0, 1)
	dayStart := midnight.Add(time.Duration(cfg.DayStartHour) * time.Hour)
	dayHeight := cfg.DayHeight()

	segments := make([]Block, 0, len(events))
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		if !inRange(ev, Range{From: midnight, To: nextMidnight}) {
			continue
		}
		start, end := ev.Start, ev.End
		if start.Before(midnight) {
			start = midnight
		}
		if end.After(nextMidnight) {
			end = nextMidnight
		}
		segments = append(segments, Block{Event: ev, Start: start, End: end})
	}

	sort.SliceStable(segments, func(i, j int) bool {
		if !segments[i].Start.Equal(segments[j].Start) {
			return segments[i].Start.Before(segments[j].Start)
		}
		return segments[i].Event.ID < segments[j].Event.ID
	})

	lastBottom := math.Inf(-1)
	for i := range segments {
		seg := &segments[i]

		minutesFromStart := seg.Start.Sub(dayStart).Minutes()
		naturalTop := clampFloat(minutesFromStart/60*cfg.HourHeight, 0, dayHeight)

		height := math.Max(cfg.MinHeight, seg.End.Sub(seg.Start).Minutes()/60*cfg.HourHeight)
		if naturalTop+height > dayHeight {
			height = math.Max(0, dayHeight-naturalTop)
		}

		seg.Top = math.Max(naturalTop, lastBottom+cfg.Gap)
		seg.Height = height
		lastBottom = seg.Top + seg.Height
	}
	return segments
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

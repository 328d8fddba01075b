package calendar

import "time"

// PositionedEvent is a timed event with its layout geometry.
type PositionedEvent struct {
	Event
	SegmentStart time.Time `json:"segment_start"`
	SegmentEnd   time.Time `json:"segment_end"`
	Top          float64   `json:"top"`
	Height       float64   `json:"height"`
}

// DayView is one calendar day of a view.
type DayView struct {
	Key     string            `json:"key"`
	Date    time.Time         `json:"date"`
	Label   string            `json:"label"`
	IsToday bool              `json:"is_today"`
	InMonth bool              `json:"in_month"`
	AllDay  []Event           `json:"all_day"`
	Timed   []PositionedEvent `json:"timed"`
}

// ViewModel is everything a renderer needs for one view. It never exposes
// session state.
type ViewModel struct {
	Mode     ViewMode     `json:"mode"`
	Pivot    time.Time    `json:"pivot"`
	Range    Range        `json:"range"`
	Last     time.Time    `json:"last"`
	Label    string       `json:"label"`
	Days     []DayView    `json:"days"`
	Layout   LayoutConfig `json:"layout"`
	Degraded bool         `json:"degraded"`
	Mocked   bool         `json:"mocked"`
	Banner   string       `json:"banner,omitempty"`
}

// BuildViewModel groups merged events by day and lays out each day's timed events.
func BuildViewModel(mode ViewMode, pivot time.Time, rng Range, result *ListResult, cfg LayoutConfig, now time.Time) ViewModel {
	cfg = cfg.Normalize()
	vm := ViewModel{
		Mode:   mode,
		Pivot:  pivot,
		Range:  rng,
		Last:   rng.Last(),
		Label:  rng.Label(mode, pivot),
		Layout: cfg,
	}

	var events []Event
	if result != nil {
		events = result.Events
		vm.Degraded = result.Degraded
		vm.Mocked = result.Mocked
		vm.Banner = result.Banner
	}

	today := now.In(pivot.Location())
	for _, day := range rng.Days() {
		dv := DayView{
			Key:     DayKey(day),
			Date:    day,
			Label:   day.Format("Mon Jan 2"),
			IsToday: sameDay(day, today),
			InMonth: day.Month() == pivot.Month() && day.Year() == pivot.Year(),
			AllDay:  make([]Event, 0),
			Timed:   make([]PositionedEvent, 0),
		}

		next := day.AddDate(0, 0, 1)
		for _, ev := range events {
			if ev.AllDay && ev.Overlaps(day, next) {
				dv.AllDay = append(dv.AllDay, ev)
			}
		}
		for _, b := range LayoutDay(day, events, cfg) {
			dv.Timed = append(dv.Timed, PositionedEvent{
				Event:        b.Event,
				SegmentStart: b.Start,
				SegmentEnd:   b.End,
				Top:          b.Top,
				Height:       b.Height,
			})
		}
		vm.Days = append(vm.Days, dv)
	}
	return vm
}

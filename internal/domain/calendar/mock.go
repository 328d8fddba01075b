package calendar

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultCadenceDays = 7
	skipProbability    = 0.18
	maxMinuteJitter    = 60
	maxDayJitter       = 2
	maxHourJitter      = 2
)

// Blueprint describes a recurring placeholder event.
type Blueprint struct {
	Title           string
	Module          Module
	Type            EventType
	Weekday         time.Weekday
	Hour            int
	Duration        time.Duration
	AllDay          bool
	RepeatEveryDays int
	Location        string
}

// DefaultBlueprints is the built-in placeholder catalogue, one or more per module.
var DefaultBlueprints = []Blueprint{
	{Title: "Crew standup", Module: ModuleOps, Type: EventTypeMeeting, Weekday: time.Monday, Hour: 9, Duration: time.Hour, RepeatEveryDays: 7},
	{Title: "Job walkthrough", Module: ModuleOps, Type: EventTypeJob, Weekday: time.Wednesday, Hour: 13, Duration: 2 * time.Hour, RepeatEveryDays: 7, Location: "Client site"},
	{Title: "Follow up new leads", Module: ModuleMarketing, Type: EventTypeLead, Weekday: time.Tuesday, Hour: 10, Duration: 30 * time.Minute, RepeatEveryDays: 7},
	{Title: "Publish social post", Module: ModuleMarketing, Type: EventTypePost, Weekday: time.Thursday, Hour: 11, Duration: 30 * time.Minute, RepeatEveryDays: 7},
	{Title: "Invoice run", Module: ModuleFinance, Type: EventTypeInvoice, Weekday: time.Friday, Hour: 15, Duration: time.Hour, RepeatEveryDays: 14},
	{Title: "Cash flow review", Module: ModuleFinance, Type: EventTypeMeeting, Weekday: time.Monday, Hour: 14, Duration: 45 * time.Minute, RepeatEveryDays: 14},
	{Title: "Sales tax filing", Module: ModuleTax, Type: EventTypeDeadline, Weekday: time.Wednesday, AllDay: true, Duration: 24 * time.Hour, RepeatEveryDays: 28},
	{Title: "Bookkeeping catch-up", Module: ModuleTax, Type: EventTypeTask, Weekday: time.Thursday, Hour: 16, Duration: time.Hour, RepeatEveryDays: 7},
	{Title: "Portfolio check-in", Module: ModuleInvestments, Type: EventTypeMeeting, Weekday: time.Tuesday, Hour: 16, Duration: 30 * time.Minute, RepeatEveryDays: 14},
	{Title: "Rebalance review", Module: ModuleInvestments, Type: EventTypeTask, Weekday: time.Friday, Hour: 10, Duration: time.Hour, RepeatEveryDays: 28},
}

// SynthesisRequest selects what to synthesize.
type SynthesisRequest struct {
	Range      Range
	BusinessID string
	Module     Module // empty means every module
}

// Synthesizer produces deterministic placeholder events from blueprints.
type Synthesizer struct {
	blueprints []Blueprint
	gen        Generator
}

// NewSynthesizer creates a synthesizer. A nil blueprint list uses DefaultBlueprints.
func NewSynthesizer(blueprints []Blueprint, gen Generator) *Synthesizer {
	if blueprints == nil {
		blueprints = DefaultBlueprints
	}
	if gen == nil {
		gen = NewHashGenerator(0)
	}
	return &Synthesizer{blueprints: blueprints, gen: gen}
}

// Jitter is the month-level offset applied to a blueprint.
type Jitter struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// MonthJitter returns the weekday/hour jitter of a blueprint for a month key ("2006-01").
func (s *Synthesizer) MonthJitter(monthKey, title string) Jitter {
	return Jitter{
		Days:  intBetween(s.gen.Float(monthKey+"|"+title+"|weekday"), -maxDayJitter, maxDayJitter),
		Hours: intBetween(s.gen.Float(monthKey+"|"+title+"|hour"), -maxHourJitter, maxHourJitter),
	}
}

// Synthesize returns the placeholder events overlapping the request range,
// sorted by start. Identical requests produce identical output.
func (s *Synthesizer) Synthesize(req SynthesisRequest) []Event {
	out := make([]Event, 0)
	if !req.Range.To.After(req.Range.From) {
		return out
	}

	for _, chunk := range monthChunks(req.Range) {
		monthKey := chunk.From.Format("2006-01")
		for _, bp := range s.blueprints {
			if req.Module != "" && bp.Module != req.Module {
				continue
			}
			out = append(out, s.expand(bp, chunk, monthKey, req.BusinessID)...)
		}
	}

	filtered := out[:0]
	for _, ev := range out {
		if ev.Overlaps(req.Range.From, req.Range.To) {
			filtered = append(filtered, ev)
		}
	}
	sortEvents(filtered)
	return filtered
}

func (s *Synthesizer) expand(bp Blueprint, chunk Range, monthKey, businessID string) []Event {
	j := s.MonthJitter(monthKey, bp.Title)

	weekday := time.Weekday((int(bp.Weekday) + j.Days + 7) % 7)
	hour := bp.Hour + j.Hours
	if hour < 0 {
		hour = 0
	}
	if hour > 23 {
		hour = 23
	}
	if bp.AllDay {
		hour = 0
	}

	// Anchor on the month so every view of the month sees the same cadence.
	day := time.Date(chunk.From.Year(), chunk.From.Month(), 1, 0, 0, 0, 0, chunk.From.Location())
	for day.Weekday() != weekday {
		day = day.AddDate(0, 0, 1)
	}
	anchor := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
	if !anchor.Before(chunk.To) {
		return nil
	}

	cadence := bp.RepeatEveryDays
	if cadence <= 0 {
		cadence = defaultCadenceDays
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: cadence,
		Dtstart:  anchor,
		Until:    chunk.To,
	})
	if err != nil {
		return nil
	}

	var events []Event
	for _, occ := range rule.Between(chunk.From, chunk.To, true) {
		if !occ.Before(chunk.To) {
			continue
		}
		occKey := bp.Title + "|" + DayKey(occ)
		if s.gen.Float(occKey+"|skip") < skipProbability {
			continue
		}

		var start, end time.Time
		if bp.AllDay {
			days := int((bp.Duration + 24*time.Hour - 1) / (24 * time.Hour))
			if days < 1 {
				days = 1
			}
			start = startOfDay(occ)
			end = start.AddDate(0, 0, days)
		} else {
			minutes := intBetween(s.gen.Float(occKey+"|minute"), -maxMinuteJitter, maxMinuteJitter)
			start = occ.Add(time.Duration(minutes) * time.Minute)
			end = start.Add(bp.Duration)
		}

		events = append(events, Event{
			ID:          fmt.Sprintf("%s%s-%s-%d", mockIDPrefix, bp.Module, bp.Type, start.Unix()),
			BusinessID:  businessID,
			Module:      bp.Module,
			Type:        bp.Type,
			Title:       bp.Title,
			Description: fmt.Sprintf("Sample %s shown until real events are added", bp.Type),
			Start:       start,
			End:         end,
			AllDay:      bp.AllDay,
			Location:    bp.Location,
			Status:      StatusScheduled,
			Source:      SourceMock,
		})
	}
	return events
}

// monthChunks splits a range at calendar month boundaries.
func monthChunks(r Range) []Range {
	var chunks []Range
	from := r.From
	for from.Before(r.To) {
		next := time.Date(from.Year(), from.Month()+1, 1, 0, 0, 0, 0, from.Location())
		if next.After(r.To) {
			next = r.To
		}
		chunks = append(chunks, Range{From: from, To: next})
		from = next
	}
	return chunks
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
}

type blueprintFile struct {
	Blueprints []struct {
		Title           string `yaml:"title"`
		Module          string `yaml:"module"`
		Type            string `yaml:"type"`
		Weekday         string `yaml:"weekday"`
		Hour            int    `yaml:"hour"`
		Duration        string `yaml:"duration"`
		AllDay          bool   `yaml:"all_day"`
		RepeatEveryDays int    `yaml:"repeat_every_days"`
		Location        string `yaml:"location"`
	} `yaml:"blueprints"`
}

// LoadBlueprints reads a YAML blueprint catalogue.
func LoadBlueprints(path string) ([]Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blueprints file: %w", err)
	}
	return ParseBlueprints(data)
}

// ParseBlueprints decodes a YAML blueprint catalogue.
func ParseBlueprints(data []byte) ([]Blueprint, error) {
	var file blueprintFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse blueprints: %w", err)
	}

	blueprints := make([]Blueprint, 0, len(file.Blueprints))
	for i, raw := range file.Blueprints {
		bp := Blueprint{
			Title:           raw.Title,
			Module:          Module(raw.Module),
			Type:            EventType(raw.Type),
			Weekday:         ParseWeekday(raw.Weekday),
			Hour:            raw.Hour,
			AllDay:          raw.AllDay,
			RepeatEveryDays: raw.RepeatEveryDays,
			Location:        raw.Location,
		}
		if raw.Duration != "" {
			d, err := time.ParseDuration(raw.Duration)
			if err != nil {
				return nil, fmt.Errorf("blueprint %d: invalid duration %q: %w", i, raw.Duration, err)
			}
			bp.Duration = d
		}
		if bp.Title == "" {
			return nil, fmt.Errorf("blueprint %d: title is required", i)
		}
		if !IsValidModule(bp.Module) {
			return nil, fmt.Errorf("blueprint %q: %w", bp.Title, ErrInvalidModule)
		}
		if !IsValidEventType(bp.Type) {
			return nil, fmt.Errorf("blueprint %q: %w", bp.Title, ErrInvalidEventType)
		}
		if bp.Duration <= 0 && !bp.AllDay {
			return nil, fmt.Errorf("blueprint %q: duration must be positive", bp.Title)
		}
		blueprints = append(blueprints, bp)
	}
	return blueprints, nil
}

package calendar

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func juneRange(t *testing.T) Range {
	t.Helper()
	rng, err := ComputeRange(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), ViewModeMonth, time.Sunday)
	require.NoError(t, err)
	return rng
}

func TestSynthesize_Deterministic(t *testing.T) {
	req := SynthesisRequest{Range: juneRange(t), BusinessID: "biz-1"}

	first, err := json.Marshal(NewSynthesizer(nil, NewHashGenerator(7)).Synthesize(req))
	require.NoError(t, err)
	second, err := json.Marshal(NewSynthesizer(nil, NewHashGenerator(7)).Synthesize(req))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, "[]", string(first))
}

func TestSynthesize_SeedChangesOutput(t *testing.T) {
	req := SynthesisRequest{Range: juneRange(t), BusinessID: "biz-1"}

	a, _ := json.Marshal(NewSynthesizer(nil, NewHashGenerator(1)).Synthesize(req))
	b, _ := json.Marshal(NewSynthesizer(nil, NewHashGenerator(2)).Synthesize(req))
	assert.NotEqual(t, a, b)
}

func TestSynthesize_Shape(t *testing.T) {
	rng := juneRange(t)
	events := NewSynthesizer(nil, NewHashGenerator(0)).Synthesize(SynthesisRequest{Range: rng, BusinessID: "biz-1"})
	require.NotEmpty(t, events)

	seen := make(map[string]bool)
	for i, ev := range events {
		assert.True(t, strings.HasPrefix(ev.ID, "mock-"+string(ev.Module)+"-"+string(ev.Type)+"-"), ev.ID)
		assert.Equal(t, SourceMock, SourceOf(ev.ID))
		assert.Equal(t, ev.Module, mockModule(ev.ID))
		assert.Equal(t, SourceMock, ev.Source)
		assert.Equal(t, "biz-1", ev.BusinessID)
		assert.True(t, ev.Overlaps(rng.From, rng.To))
		assert.False(t, ev.End.Before(ev.Start))
		if ev.AllDay {
			assert.Zero(t, ev.Start.Hour())
		}
		if i > 0 {
			assert.False(t, ev.Start.Before(events[i-1].Start), "events must be sorted by start")
		}
		assert.False(t, seen[ev.ID], "duplicate id %s", ev.ID)
		seen[ev.ID] = true
	}
}

func TestSynthesize_ModuleFilter(t *testing.T) {
	events := NewSynthesizer(nil, NewHashGenerator(0)).Synthesize(SynthesisRequest{
		Range:      juneRange(t),
		BusinessID: "biz-1",
		Module:     ModuleOps,
	})
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, ModuleOps, ev.Module)
	}
}

func TestSynthesize_EmptyRange(t *testing.T) {
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	events := NewSynthesizer(nil, nil).Synthesize(SynthesisRequest{Range: Range{From: at, To: at}})
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestSynthesize_ViewsAgree(t *testing.T) {
	// A week inside June must show the same placeholders as the June month view.
	synth := NewSynthesizer(nil, NewHashGenerator(3))
	month := synth.Synthesize(SynthesisRequest{Range: juneRange(t), BusinessID: "biz-1"})

	week, err := ComputeRange(time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC), ViewModeWeek, time.Sunday)
	require.NoError(t, err)
	weekly := synth.Synthesize(SynthesisRequest{Range: week, BusinessID: "biz-1"})

	byID := make(map[string]Event, len(month))
	for _, ev := range month {
		byID[ev.ID] = ev
	}
	for _, ev := range weekly {
		other, ok := byID[ev.ID]
		require.True(t, ok, "week event %s missing from month view", ev.ID)
		assert.True(t, ev.Start.Equal(other.Start))
	}
}

func TestMonthJitter_CrewStandup(t *testing.T) {
	synth := NewSynthesizer(nil, NewHashGenerator(0))

	june := synth.MonthJitter("2025-06", "Crew standup")
	for i := 0; i < 5; i++ {
		assert.Equal(t, june, synth.MonthJitter("2025-06", "Crew standup"))
	}
	assert.Equal(t, june, NewSynthesizer(nil, NewHashGenerator(0)).MonthJitter("2025-06", "Crew standup"))

	july := synth.MonthJitter("2025-07", "Crew standup")
	assert.Equal(t, july, synth.MonthJitter("2025-07", "Crew standup"))

	distinct := map[Jitter]bool{}
	for m := 1; m <= 12; m++ {
		key := time.Date(2025, time.Month(m), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
		j := synth.MonthJitter(key, "Crew standup")
		assert.GreaterOrEqual(t, j.Days, -maxDayJitter)
		assert.LessOrEqual(t, j.Days, maxDayJitter)
		assert.GreaterOrEqual(t, j.Hours, -maxHourJitter)
		assert.LessOrEqual(t, j.Hours, maxHourJitter)
		distinct[j] = true
	}
	assert.Greater(t, len(distinct), 1, "jitter must vary from month to month")
}

func TestSynthesize_CrewStandupFollowsJitter(t *testing.T) {
	bp := Blueprint{
		Title:           "Crew standup",
		Module:          ModuleOps,
		Type:            EventTypeMeeting,
		Weekday:         time.Monday,
		Hour:            9,
		Duration:        time.Hour,
		RepeatEveryDays: 7,
	}
	synth := NewSynthesizer([]Blueprint{bp}, NewHashGenerator(0))
	june := Range{
		From: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	j := synth.MonthJitter("2025-06", bp.Title)
	weekday := time.Weekday((int(time.Monday) + j.Days + 7) % 7)

	events := synth.Synthesize(SynthesisRequest{Range: june, BusinessID: "biz"})
	for _, ev := range events {
		assert.Equal(t, time.Hour, ev.Duration())
		// minute jitter is at most an hour either side of the jittered slot
		slot := time.Date(ev.Start.Year(), ev.Start.Month(), ev.Start.Day(), 9+j.Hours, 0, 0, 0, time.UTC)
		diff := ev.Start.Sub(slot)
		if diff > maxMinuteJitter*time.Minute {
			slot = slot.AddDate(0, 0, 1)
		} else if diff < -maxMinuteJitter*time.Minute {
			slot = slot.AddDate(0, 0, -1)
		}
		assert.Equal(t, weekday, slot.Weekday())
	}
}

func TestParseBlueprints(t *testing.T) {
	data := []byte(`
blueprints:
  - title: Crew standup
    module: ops
    type: meeting
    weekday: monday
    hour: 9
    duration: 1h
    repeat_every_days: 7
  - title: Quarterly estimate
    module: tax
    type: deadline
    weekday: friday
    all_day: true
    repeat_every_days: 91
`)
	bps, err := ParseBlueprints(data)
	require.NoError(t, err)
	require.Len(t, bps, 2)

	assert.Equal(t, "Crew standup", bps[0].Title)
	assert.Equal(t, ModuleOps, bps[0].Module)
	assert.Equal(t, time.Monday, bps[0].Weekday)
	assert.Equal(t, time.Hour, bps[0].Duration)
	assert.True(t, bps[1].AllDay)
	assert.Equal(t, 91, bps[1].RepeatEveryDays)
}

func TestParseBlueprints_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing title", "blueprints:\n  - module: ops\n    type: task\n    duration: 1h\n"},
		{"bad module", "blueprints:\n  - title: x\n    module: hr\n    type: task\n    duration: 1h\n"},
		{"bad type", "blueprints:\n  - title: x\n    module: ops\n    type: party\n    duration: 1h\n"},
		{"bad duration", "blueprints:\n  - title: x\n    module: ops\n    type: task\n    duration: soon\n"},
		{"no duration", "blueprints:\n  - title: x\n    module: ops\n    type: task\n"},
		{"not yaml", "blueprints: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBlueprints([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestHashGenerator(t *testing.T) {
	g := NewHashGenerator(42)
	for _, key := range []string{"", "a", "2025-06|Crew standup|weekday"} {
		v := g.Float(key)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
		assert.Equal(t, v, g.Float(key))
	}
	assert.NotEqual(t, g.Float("a"), NewHashGenerator(43).Float("a"))
}

func TestIntBetween(t *testing.T) {
	assert.Equal(t, -2, intBetween(0, -2, 2))
	assert.Equal(t, 2, intBetween(0.999999, -2, 2))
	assert.Equal(t, 0, intBetween(0.5, -2, 2))
	assert.Equal(t, 2, intBetween(1, -2, 2))
}

package calendar

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportICS(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	meeting := timed("3f1c2b9e-persisted", time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC), time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC))
	meeting.Title = "Client walkthrough"
	meeting.Location = "Main St"
	meeting.Source = SourcePersisted

	deadline := timed("mock-tax-deadline-1749513600", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))
	deadline.Title = "Quarterly estimate"
	deadline.AllDay = true
	deadline.Module = ModuleTax
	deadline.Type = EventTypeDeadline
	deadline.Source = SourceMock

	doc := ExportICS("Business calendar June 2025", []Event{meeting, deadline}, now)
	assert.Contains(t, doc, "BEGIN:VCALENDAR")
	assert.Contains(t, doc, "X-WR-CALNAME:Business calendar June 2025")
	assert.Contains(t, doc, "DTSTART;VALUE=DATE:20250615")

	cal, err := ical.ParseCalendar(strings.NewReader(doc))
	require.NoError(t, err)
	parsed := cal.Events()
	require.Len(t, parsed, 2)

	assert.Equal(t, meeting.ID+"@calendar.biznest", parsed[0].Id())
	assert.Equal(t, "Client walkthrough", parsed[0].GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "Main St", parsed[0].GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Equal(t, string(ical.ObjectStatusConfirmed), parsed[0].GetProperty(ical.ComponentPropertyStatus).Value)
	start, err := parsed[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(meeting.Start))

	assert.Equal(t, string(ical.ObjectStatusTentative), parsed[1].GetProperty(ical.ComponentPropertyStatus).Value)
}

func TestExportICS_Empty(t *testing.T) {
	doc := ExportICS("", nil, time.Now())
	assert.Contains(t, doc, "BEGIN:VCALENDAR")
	assert.NotContains(t, doc, "BEGIN:VEVENT")
	assert.NotContains(t, doc, "X-WR-CALNAME")
}

package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildViewModel_Week(t *testing.T) {
	pivot := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	rng, err := ComputeRange(pivot, ViewModeWeek, time.Sunday)
	require.NoError(t, err)

	holiday := timed("holiday", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC))
	holiday.AllDay = true
	standup := timed("standup", time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC), time.Date(2025, 6, 11, 9, 30, 0, 0, time.UTC))

	result := &ListResult{Events: []Event{holiday, standup}, Mocked: true, Banner: "banner"}
	vm := BuildViewModel(ViewModeWeek, pivot, rng, result, DefaultLayoutConfig(), pivot)

	assert.Equal(t, "Jun 8 - Jun 14, 2025", vm.Label)
	assert.Equal(t, rng.Last(), vm.Last)
	assert.True(t, vm.Mocked)
	assert.Equal(t, "banner", vm.Banner)
	require.Len(t, vm.Days, 7)

	tue, wed, thu := vm.Days[2], vm.Days[3], vm.Days[4]
	assert.Equal(t, "2025-06-10", tue.Key)
	assert.True(t, tue.IsToday)
	assert.False(t, wed.IsToday)

	require.Len(t, tue.AllDay, 1)
	require.Len(t, wed.AllDay, 1)
	assert.Empty(t, thu.AllDay)
	assert.Empty(t, tue.Timed)

	require.Len(t, wed.Timed, 1)
	assert.Equal(t, "standup", wed.Timed[0].ID)
	assert.Equal(t, 432.0, wed.Timed[0].Top)
	assert.Equal(t, 24.0, wed.Timed[0].Height)

	// empty days still carry empty, non-nil slices
	assert.NotNil(t, vm.Days[0].AllDay)
	assert.NotNil(t, vm.Days[0].Timed)
}

func TestBuildViewModel_MonthMarksOutsideDays(t *testing.T) {
	pivot := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	rng, err := ComputeRange(pivot, ViewModeMonth, time.Sunday)
	require.NoError(t, err)

	vm := BuildViewModel(ViewModeMonth, pivot, rng, nil, DefaultLayoutConfig(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, vm.Days, 35)
	assert.Equal(t, "June 2025", vm.Label)

	inMonth := 0
	for _, d := range vm.Days {
		assert.False(t, d.IsToday)
		if d.InMonth {
			inMonth++
		}
	}
	assert.Equal(t, 30, inMonth)
	assert.False(t, vm.Days[len(vm.Days)-1].InMonth)
}

package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commit struct {
	scope      Scope
	id         string
	start, end time.Time
}

type fakeCommitter struct {
	commits []commit
	err     error
}

func (f *fakeCommitter) Reschedule(_ context.Context, scope Scope, id string, start, end time.Time) (*Mutation, error) {
	f.commits = append(f.commits, commit{scope: scope, id: id, start: start, end: end})
	m := newMutation(MutationReschedule, id, SourceOf(id))
	if f.err != nil {
		_ = m.RollBack(f.err)
		return m, f.err
	}
	_ = m.Confirm()
	return m, nil
}

var dragScope = Scope{BusinessID: "biz-1"}

func weekColumns() []Column {
	var cols []Column
	first := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		cols = append(cols, Column{
			Key:   DayKey(first.AddDate(0, 0, i)),
			Left:  float64(i * 100),
			Right: float64((i + 1) * 100),
		})
	}
	return cols
}

func meeting() Event {
	return timed("evt-1",
		time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC))
}

func TestRescheduler_SnapsToQuarterHour(t *testing.T) {
	committer := &fakeCommitter{}
	r := NewRescheduler(committer, nil)

	_, err := r.Begin(BeginDrag{
		GestureID: "g1",
		Scope:     dragScope,
		Event:     meeting(),
		OffsetY:   10,
		View:      ViewModeWeek,
		Columns:   []Column{{Key: "2025-06-10", Left: 0, Right: 100}},
		Layout:    DefaultLayoutConfig(),
	})
	require.NoError(t, err)

	p, err := r.Move("biz-1", "g1", 50, 527.6)
	require.NoError(t, err)
	assert.Equal(t, 645, p.Minutes)
	assert.Equal(t, time.Date(2025, 6, 10, 10, 45, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2025, 6, 10, 11, 45, 0, 0, time.UTC), p.End)

	res, err := r.End(context.Background(), "biz-1", "g1", 50, 527.6)
	require.NoError(t, err)
	assert.Equal(t, DragDropped, res.State)
	require.NotNil(t, res.Mutation)
	assert.Equal(t, MutationConfirmed, res.Mutation.State)

	require.Len(t, committer.commits, 1)
	assert.Equal(t, "evt-1", committer.commits[0].id)
	assert.Equal(t, dragScope, committer.commits[0].scope)
	assert.Equal(t, p.Start, committer.commits[0].start)
	assert.Equal(t, time.Hour, committer.commits[0].end.Sub(committer.commits[0].start))
	assert.Zero(t, r.Len())
}

func TestRescheduler_DropsAlwaysOnSnapBoundary(t *testing.T) {
	r := NewRescheduler(&fakeCommitter{}, nil)
	_, err := r.Begin(BeginDrag{
		GestureID: "g1",
		Scope:     dragScope,
		Event:     meeting(),
		OffsetY:   7,
		View:      ViewModeWeek,
		Columns:   weekColumns(),
	})
	require.NoError(t, err)

	for y := -50.0; y < 1300; y += 3.7 {
		p, err := r.Move("biz-1", "g1", 250, y)
		require.NoError(t, err)
		assert.Zero(t, p.Minutes%SnapMinutes, "y=%v", y)
		assert.Zero(t, p.Start.Minute()%SnapMinutes)
		assert.GreaterOrEqual(t, p.Minutes, 0)
		// the event never runs past the end of the day
		assert.False(t, p.End.After(time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)), "y=%v end=%v", y, p.End)
		assert.Equal(t, time.Hour, p.End.Sub(p.Start))
	}
}

func TestRescheduler_NearestColumn(t *testing.T) {
	r := NewRescheduler(&fakeCommitter{}, nil)
	_, err := r.Begin(BeginDrag{GestureID: "g1", Scope: dragScope, Event: meeting(), View: ViewModeWeek, Columns: weekColumns()})
	require.NoError(t, err)

	p, err := r.Move("biz-1", "g1", 450, 480)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-12", p.ColumnKey)

	// past the right edge snaps to the last column
	p, err = r.Move("biz-1", "g1", 2000, 480)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-14", p.ColumnKey)

	p, err = r.Move("biz-1", "g1", -30, 480)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-08", p.ColumnKey)
	assert.Equal(t, time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC), p.Start)
}

func TestRescheduler_UnresolvedDropKeepsOriginal(t *testing.T) {
	committer := &fakeCommitter{}
	r := NewRescheduler(committer, nil)
	ev := meeting()
	_, err := r.Begin(BeginDrag{GestureID: "g1", Scope: dragScope, Event: ev, View: ViewModeWeek})
	require.NoError(t, err)

	_, err = r.Move("biz-1", "g1", 10, 10)
	assert.ErrorIs(t, err, ErrUnresolvedDrop)

	res, err := r.End(context.Background(), "biz-1", "g1", 10, 10)
	assert.ErrorIs(t, err, ErrUnresolvedDrop)
	require.NotNil(t, res)
	assert.Equal(t, DragCancelled, res.State)
	assert.Equal(t, ev.Start, res.Preview.Start)
	assert.Equal(t, ev.End, res.Preview.End)
	assert.Equal(t, "2025-06-10", res.Preview.ColumnKey)
	assert.Nil(t, res.Mutation)
	assert.Empty(t, committer.commits)
	assert.Zero(t, r.Len())
}

func TestRescheduler_StaleGesture(t *testing.T) {
	r := NewRescheduler(&fakeCommitter{}, nil)

	_, err := r.Move("biz-1", "missing", 0, 0)
	assert.ErrorIs(t, err, ErrStaleGesture)
	_, err = r.End(context.Background(), "biz-1", "missing", 0, 0)
	assert.ErrorIs(t, err, ErrStaleGesture)
	assert.ErrorIs(t, r.Cancel("biz-1", "missing"), ErrStaleGesture)

	_, err = r.Begin(BeginDrag{GestureID: "g1", Scope: dragScope, Event: meeting(), Columns: weekColumns()})
	require.NoError(t, err)
	require.NoError(t, r.Cancel("biz-1", "g1"))

	_, err = r.Move("biz-1", "g1", 250, 100)
	assert.ErrorIs(t, err, ErrStaleGesture)
	assert.Equal(t, KindStaleGesture, KindOf(err))
}

func TestRescheduler_CancelCommitsNothing(t *testing.T) {
	committer := &fakeCommitter{}
	r := NewRescheduler(committer, nil)
	_, err := r.Begin(BeginDrag{GestureID: "g1", Scope: dragScope, Event: meeting(), Columns: weekColumns()})
	require.NoError(t, err)

	_, err = r.Move("biz-1", "g1", 650, 100)
	require.NoError(t, err)
	require.NoError(t, r.Cancel("biz-1", "g1"))

	assert.Empty(t, committer.commits)
	_, ok := r.Active("g1")
	assert.False(t, ok)
}

func TestRescheduler_UnchangedDropSkipsCommit(t *testing.T) {
	committer := &fakeCommitter{}
	r := NewRescheduler(committer, nil)
	_, err := r.Begin(BeginDrag{GestureID: "g1", Scope: dragScope, Event: meeting(), Columns: weekColumns()})
	require.NoError(t, err)

	// 10:00 on Tuesday with no grab offset
	res, err := r.End(context.Background(), "biz-1", "g1", 250, 480)
	require.NoError(t, err)
	assert.Equal(t, DragDropped, res.State)
	assert.Nil(t, res.Mutation)
	assert.Empty(t, committer.commits)
}

func TestRescheduler_CommitFailureSurfaces(t *testing.T) {
	committer := &fakeCommitter{err: NetworkError("reschedule", errors.New("connection refused"))}
	r := NewRescheduler(committer, nil)
	_, err := r.Begin(BeginDrag{GestureID: "g1", Scope: dragScope, Event: meeting(), Columns: weekColumns()})
	require.NoError(t, err)

	res, err := r.End(context.Background(), "biz-1", "g1", 350, 480)
	assert.ErrorIs(t, err, ErrNetwork)
	require.NotNil(t, res)
	require.NotNil(t, res.Mutation)
	assert.Equal(t, MutationRolledBack, res.Mutation.State)
}

func TestRescheduler_MonthCellsKeepTimeOfDay(t *testing.T) {
	committer := &fakeCommitter{}
	r := NewRescheduler(committer, nil)
	ev := timed("evt-2",
		time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC),
		time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))

	_, err := r.Begin(BeginDrag{
		GestureID: "g1",
		Scope:     dragScope,
		Event:     ev,
		View:      ViewModeMonth,
		Cells: []Cell{
			{Key: "2025-06-10", Left: 0, Top: 0, Right: 100, Bottom: 80},
			{Key: "2025-06-12", Left: 100, Top: 0, Right: 200, Bottom: 80},
			{Key: "2025-06-19", Left: 100, Top: 80, Right: 200, Bottom: 160},
		},
	})
	require.NoError(t, err)

	res, err := r.End(context.Background(), "biz-1", "g1", 150, 120)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-19", res.Preview.ColumnKey)
	assert.Equal(t, time.Date(2025, 6, 19, 14, 30, 0, 0, time.UTC), res.Preview.Start)
	assert.Equal(t, time.Date(2025, 6, 19, 15, 0, 0, 0, time.UTC), res.Preview.End)
	require.Len(t, committer.commits, 1)
}

func TestRescheduler_AllDayMovesWholeDays(t *testing.T) {
	r := NewRescheduler(&fakeCommitter{}, nil)
	ev := timed("evt-3", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC))
	ev.AllDay = true

	_, err := r.Begin(BeginDrag{GestureID: "g1", Scope: dragScope, Event: ev, View: ViewModeWeek, Columns: weekColumns()})
	require.NoError(t, err)

	p, err := r.Move("biz-1", "g1", 550, 999)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), p.End)
}

func TestRescheduler_ViewerTimeZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	r := NewRescheduler(&fakeCommitter{}, nil)

	// 14:00 UTC is 10:00 in New York
	ev := timed("evt-4", time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC), time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	ev.Start, ev.End = ev.Start.In(ny), ev.End.In(ny)

	_, err = r.Begin(BeginDrag{GestureID: "g1", Scope: dragScope, Event: ev, Columns: weekColumns()})
	require.NoError(t, err)

	p, err := r.Move("biz-1", "g1", 350, 528)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-11", p.ColumnKey)
	assert.True(t, p.Start.Equal(time.Date(2025, 6, 11, 15, 0, 0, 0, time.UTC)), p.Start.String())
}

func TestRescheduler_OwnerSupersedes(t *testing.T) {
	r := NewRescheduler(&fakeCommitter{}, nil)
	_, err := r.Begin(BeginDrag{GestureID: "g1", Owner: "tab-1", Scope: dragScope, Event: meeting(), Columns: weekColumns()})
	require.NoError(t, err)
	_, err = r.Begin(BeginDrag{GestureID: "g2", Owner: "tab-1", Scope: dragScope, Event: meeting(), Columns: weekColumns()})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Len())
	_, err = r.Move("biz-1", "g1", 250, 100)
	assert.ErrorIs(t, err, ErrStaleGesture)
	_, err = r.Move("biz-1", "g2", 250, 100)
	assert.NoError(t, err)

	assert.True(t, r.CancelOwner("biz-1", "tab-1"))
	assert.False(t, r.CancelOwner("biz-1", "tab-1"))
	assert.Zero(t, r.Len())
}

func TestRescheduler_Expire(t *testing.T) {
	clock := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	r := NewRescheduler(&fakeCommitter{}, nil)
	r.now = func() time.Time { return clock }

	_, err := r.Begin(BeginDrag{GestureID: "idle", Owner: "a", Scope: dragScope, Event: meeting(), Columns: weekColumns()})
	require.NoError(t, err)
	_, err = r.Begin(BeginDrag{GestureID: "busy", Owner: "b", Scope: dragScope, Event: meeting(), Columns: weekColumns()})
	require.NoError(t, err)

	clock = clock.Add(20 * time.Second)
	_, err = r.Move("biz-1", "busy", 250, 100)
	require.NoError(t, err)

	clock = clock.Add(15 * time.Second)
	expired := r.Expire(30 * time.Second)
	assert.Equal(t, []string{"idle"}, expired)

	_, ok := r.Active("busy")
	assert.True(t, ok)
	_, err = r.End(context.Background(), "biz-1", "idle", 250, 100)
	assert.ErrorIs(t, err, ErrStaleGesture)
}

func TestRescheduler_BeginValidates(t *testing.T) {
	r := NewRescheduler(&fakeCommitter{}, nil)

	_, err := r.Begin(BeginDrag{Event: meeting()})
	assert.ErrorIs(t, err, ErrMissingBusiness)

	_, err = r.Begin(BeginDrag{Scope: dragScope})
	assert.Equal(t, KindValidation, KindOf(err))

	bad := meeting()
	bad.End = bad.Start.Add(-time.Minute)
	_, err = r.Begin(BeginDrag{Scope: dragScope, Event: bad})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestRescheduler_GesturesStayInBusiness(t *testing.T) {
	committer := &fakeCommitter{}
	r := NewRescheduler(committer, nil)
	_, err := r.Begin(BeginDrag{GestureID: "g1", Owner: "tab-1", Scope: dragScope, Event: meeting(), Columns: weekColumns()})
	require.NoError(t, err)

	_, err = r.Move("biz-2", "g1", 250, 100)
	assert.ErrorIs(t, err, ErrStaleGesture)
	_, err = r.End(context.Background(), "biz-2", "g1", 250, 100)
	assert.ErrorIs(t, err, ErrStaleGesture)
	assert.ErrorIs(t, r.Cancel("biz-2", "g1"), ErrStaleGesture)
	assert.False(t, r.CancelOwner("biz-2", "tab-1"))

	// the same client id in another business does not supersede
	_, err = r.Begin(BeginDrag{GestureID: "g2", Owner: "tab-1", Scope: Scope{BusinessID: "biz-2"}, Event: meeting(), Columns: weekColumns()})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	_, ok := r.Active("g1")
	assert.True(t, ok)
	_, err = r.End(context.Background(), "biz-1", "g1", 250, 480)
	require.NoError(t, err)
	require.Len(t, committer.commits, 1)
	assert.Equal(t, "biz-1", committer.commits[0].scope.BusinessID)
}

package calendar

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BizNestAI/bizzy-sub000/internal/domain/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []events.CalendarChange
	err     error
}

func (p *recordingPublisher) PublishCalendarChange(_ context.Context, change events.CalendarChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	return p.err
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.changes {
		out = append(out, c.Action)
	}
	return out
}

func newTestService(repo Repository, pub ChangePublisher, fallback bool) Service {
	r := NewReconciler(repo, NewMemoryStore(), NewSynthesizer(nil, NewHashGenerator(5)), ReconcilerConfig{FallbackAllowed: fallback}, nil)
	return NewService(r, pub, Settings{WeekStart: time.Sunday}, nil)
}

func TestService_Defaults(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil, true)
	s := svc.Settings()
	assert.Equal(t, 30*time.Second, s.DragTimeout)
	assert.Equal(t, 48.0, s.Layout.HourHeight)
	assert.Equal(t, 24, s.Layout.DayEndHour)
	assert.Equal(t, time.Sunday, s.WeekStart)
}

func TestService_ListEventsInViewerZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	repo := newFakeRepo()
	ev := roofDraft().Event(uuid.NewString(), SourcePersisted)
	repo.put(ev)
	svc := newTestService(repo, nil, true)

	res, rng, err := svc.ListEvents(context.Background(), ViewRequest{
		BusinessID: "biz-1",
		Mode:       ViewModeWeek,
		Pivot:      time.Date(2025, 6, 10, 12, 0, 0, 0, ny),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 8, 0, 0, 0, 0, ny), rng.From)
	require.Len(t, res.Events, 1)
	assert.Equal(t, ny, res.Events[0].Start.Location())
	assert.True(t, res.Events[0].Start.Equal(ev.Start))
}

func TestService_InvalidMode(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil, true)
	_, err := svc.GetView(context.Background(), ViewRequest{BusinessID: "biz-1", Mode: "year"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_GetView(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil, true)
	vm, err := svc.GetView(context.Background(), ViewRequest{
		BusinessID: "biz-1",
		Mode:       ViewModeAgenda,
		Pivot:      time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, vm.Days, 15)
	assert.True(t, vm.Mocked)
	assert.Equal(t, ViewModeAgenda, vm.Mode)
}

func TestService_PublishesSettledMutations(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newTestService(repo, pub, true)

	created, err := svc.CreateEvent(ctx, roofDraft())
	require.NoError(t, err)

	scope := Scope{BusinessID: "biz-1"}
	repo.fail(errConnRefused)
	title := "Gutter repair"
	m, err := svc.UpdateEvent(ctx, scope, created.ID, Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, MutationRolledBack, m.State)

	repo.fail(nil)
	_, err = svc.DeleteEvent(ctx, scope, created.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{events.ActionCreated, events.ActionRolledBack, events.ActionDeleted}, pub.actions())
	for _, c := range pub.changes {
		assert.Equal(t, "biz-1", c.BusinessID)
		assert.Equal(t, created.ID, c.EventID)
	}
	assert.Empty(t, pub.changes[0].MutationID)
	assert.NotEmpty(t, pub.changes[1].MutationID)
}

func TestService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	svc := newTestService(newFakeRepo(), pub, true)

	_, err := svc.CreateEvent(context.Background(), roofDraft())
	assert.NoError(t, err)
	assert.Len(t, pub.changes, 1)
}

func TestService_DragRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newTestService(repo, pub, true)

	ev := roofDraft().Event(uuid.NewString(), SourcePersisted)
	repo.put(ev)

	req := ViewRequest{BusinessID: "biz-1", Mode: ViewModeWeek, Pivot: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)}
	_, err := svc.GetView(ctx, req)
	require.NoError(t, err)

	_, err = svc.StartDrag(ctx, DragStart{Scope: req.Scope(), EventID: uuid.NewString(), GestureID: "g0"})
	assert.ErrorIs(t, err, ErrNotFound)

	preview, err := svc.StartDrag(ctx, DragStart{
		Scope:     req.Scope(),
		EventID:   ev.ID,
		GestureID: "g1",
		Owner:     "tab-1",
		View:      ViewModeWeek,
		Columns:   weekColumns(),
		Location:  time.UTC,
	})
	require.NoError(t, err)
	assert.Equal(t, ev.Start, preview.Start)

	// Saturday 13:00
	_, err = svc.MoveDrag("biz-1", "g1", 650, 624)
	require.NoError(t, err)
	res, err := svc.EndDrag(ctx, "biz-1", "g1", 650, 624)
	require.NoError(t, err)
	require.NotNil(t, res.Mutation)
	assert.Equal(t, MutationConfirmed, res.Mutation.State)

	want := time.Date(2025, 6, 14, 13, 0, 0, 0, time.UTC)
	assert.True(t, repo.events[ev.ID].Start.Equal(want), repo.events[ev.ID].Start.String())
	assert.Equal(t, 2*time.Hour, repo.events[ev.ID].Duration())
	assert.Equal(t, []string{events.ActionRescheduled}, pub.actions())

	_, err = svc.EndDrag(ctx, "biz-1", "g1", 650, 624)
	assert.ErrorIs(t, err, ErrStaleGesture)
}

func TestService_ExpireDrags(t *testing.T) {
	repo := newFakeRepo()
	r := NewReconciler(repo, NewMemoryStore(), nil, ReconcilerConfig{FallbackAllowed: true}, nil)
	svc := NewService(r, nil, Settings{DragTimeout: time.Second}, nil).(*service)

	clock := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	svc.rescheduler.now = func() time.Time { return clock }

	ev := roofDraft().Event(uuid.NewString(), SourcePersisted)
	repo.put(ev)
	_, _, err := svc.ListEvents(context.Background(), ViewRequest{BusinessID: "biz-1", Mode: ViewModeWeek, Pivot: ev.Start})
	require.NoError(t, err)

	_, err = svc.StartDrag(context.Background(), DragStart{Scope: Scope{BusinessID: "biz-1"}, EventID: ev.ID, GestureID: "g1", Columns: weekColumns()})
	require.NoError(t, err)

	assert.Empty(t, svc.ExpireDrags())
	clock = clock.Add(2 * time.Second)
	assert.Equal(t, []string{"g1"}, svc.ExpireDrags())
	assert.ErrorIs(t, svc.CancelDrag("biz-1", "g1"), ErrStaleGesture)
}

func TestService_ExportICS(t *testing.T) {
	repo := newFakeRepo()
	repo.put(roofDraft().Event(uuid.NewString(), SourcePersisted))
	svc := newTestService(repo, nil, true)

	doc, err := svc.ExportICS(context.Background(), ViewRequest{
		BusinessID: "biz-1",
		Mode:       ViewModeMonth,
		Pivot:      time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, doc, "SUMMARY:Roof repair")
	assert.Equal(t, 1, strings.Count(doc, "BEGIN:VEVENT"))
	assert.Contains(t, doc, "June 2025")
}

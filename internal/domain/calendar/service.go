package calendar

import (
	"context"
	"time"

	"github.com/BizNestAI/bizzy-sub000/internal/domain/events"
	"go.uber.org/zap"
)

// ChangePublisher broadcasts settled calendar mutations.
type ChangePublisher interface {
	PublishCalendarChange(ctx context.Context, change events.CalendarChange) error
}

// Settings are the view and drag parameters shared by every request.
type Settings struct {
	WeekStart   time.Weekday
	Layout      LayoutConfig
	DragTimeout time.Duration
}

// ViewRequest selects a view.
type ViewRequest struct {
	BusinessID string
	Module     Module
	Mode       ViewMode
	Pivot      time.Time
}

func (r ViewRequest) Scope() Scope {
	return Scope{BusinessID: r.BusinessID, Module: r.Module}
}

// DragStart begins a gesture on an event the client has on screen.
type DragStart struct {
	Scope     Scope
	EventID   string
	GestureID string
	Owner     string
	OriginKey string
	OffsetY   float64
	View      ViewMode
	Columns   []Column
	Cells     []Cell
	// Location is the viewer's time zone; column keys are read in it.
	Location *time.Location
}

// Service defines the calendar engine operations exposed to the API
type Service interface {
	GetView(ctx context.Context, req ViewRequest) (*ViewModel, error)
	ListEvents(ctx context.Context, req ViewRequest) (*ListResult, Range, error)
	ExportICS(ctx context.Context, req ViewRequest) (string, error)

	CreateEvent(ctx context.Context, draft Draft) (*Event, error)
	UpdateEvent(ctx context.Context, scope Scope, id string, patch Patch) (*Mutation, error)
	DeleteEvent(ctx context.Context, scope Scope, id string) (*Mutation, error)

	StartDrag(ctx context.Context, req DragStart) (Preview, error)
	MoveDrag(businessID, gestureID string, x, y float64) (Preview, error)
	EndDrag(ctx context.Context, businessID, gestureID string, x, y float64) (*DropResult, error)
	CancelDrag(businessID, gestureID string) error
	CancelOwnerDrag(businessID, owner string) bool
	ExpireDrags() []string

	Settings() Settings
}

type service struct {
	reconciler  *Reconciler
	rescheduler *Rescheduler
	publisher   ChangePublisher
	settings    Settings
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a new calendar service instance. publisher may be nil.
func NewService(reconciler *Reconciler, publisher ChangePublisher, settings Settings, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings.Layout = settings.Layout.Normalize()
	if settings.DragTimeout <= 0 {
		settings.DragTimeout = 30 * time.Second
	}
	return &service{
		reconciler:  reconciler,
		rescheduler: NewRescheduler(reconciler, logger),
		publisher:   publisher,
		settings:    settings,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *service) Settings() Settings {
	return s.settings
}

func (s *service) ListEvents(ctx context.Context, req ViewRequest) (*ListResult, Range, error) {
	if !IsValidViewMode(req.Mode) {
		return nil, Range{}, ErrInvalidViewMode
	}
	if req.Pivot.IsZero() {
		req.Pivot = s.now()
	}
	rng, err := ComputeRange(req.Pivot, req.Mode, s.settings.WeekStart)
	if err != nil {
		return nil, Range{}, err
	}

	result, err := s.reconciler.List(ctx, ListRequest{Scope: req.Scope(), Range: rng})
	if err != nil {
		return nil, rng, err
	}

	loc := req.Pivot.Location()
	for i := range result.Events {
		result.Events[i].Start = result.Events[i].Start.In(loc)
		result.Events[i].End = result.Events[i].End.In(loc)
	}
	return result, rng, nil
}

func (s *service) GetView(ctx context.Context, req ViewRequest) (*ViewModel, error) {
	if req.Pivot.IsZero() {
		req.Pivot = s.now()
	}
	result, rng, err := s.ListEvents(ctx, req)
	if err != nil {
		return nil, err
	}
	vm := BuildViewModel(req.Mode, req.Pivot, rng, result, s.settings.Layout, s.now())
	return &vm, nil
}

func (s *service) ExportICS(ctx context.Context, req ViewRequest) (string, error) {
	result, rng, err := s.ListEvents(ctx, req)
	if err != nil {
		return "", err
	}
	name := "Business calendar " + rng.Label(req.Mode, req.Pivot)
	return ExportICS(name, result.Events, s.now()), nil
}

func (s *service) CreateEvent(ctx context.Context, draft Draft) (*Event, error) {
	event, err := s.reconciler.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.ActionCreated, *event, "")
	return event, nil
}

func (s *service) UpdateEvent(ctx context.Context, scope Scope, id string, patch Patch) (*Mutation, error) {
	m, err := s.reconciler.Update(ctx, scope, id, patch)
	s.publishMutation(ctx, scope, m, events.ActionUpdated)
	return m, err
}

func (s *service) DeleteEvent(ctx context.Context, scope Scope, id string) (*Mutation, error) {
	m, err := s.reconciler.Delete(ctx, scope, id)
	s.publishMutation(ctx, scope, m, events.ActionDeleted)
	return m, err
}

func (s *service) StartDrag(ctx context.Context, req DragStart) (Preview, error) {
	if err := req.Scope.Validate(); err != nil {
		return Preview{}, err
	}
	event, ok := s.reconciler.Lookup(ctx, req.Scope, req.EventID)
	if !ok {
		return Preview{}, ErrNotFound
	}
	if req.Location != nil {
		event.Start = event.Start.In(req.Location)
		event.End = event.End.In(req.Location)
	}
	return s.rescheduler.Begin(BeginDrag{
		GestureID: req.GestureID,
		Owner:     req.Owner,
		Scope:     req.Scope,
		Event:     event,
		OriginKey: req.OriginKey,
		OffsetY:   req.OffsetY,
		View:      req.View,
		Columns:   req.Columns,
		Cells:     req.Cells,
		Layout:    s.settings.Layout,
	})
}

func (s *service) MoveDrag(businessID, gestureID string, x, y float64) (Preview, error) {
	return s.rescheduler.Move(businessID, gestureID, x, y)
}

func (s *service) EndDrag(ctx context.Context, businessID, gestureID string, x, y float64) (*DropResult, error) {
	result, err := s.rescheduler.End(ctx, businessID, gestureID, x, y)
	if result != nil && result.Mutation != nil {
		scope := Scope{BusinessID: result.Original.BusinessID, Module: result.Original.Module}
		s.publishMutation(ctx, scope, result.Mutation, events.ActionRescheduled)
	}
	return result, err
}

func (s *service) CancelDrag(businessID, gestureID string) error {
	return s.rescheduler.Cancel(businessID, gestureID)
}

func (s *service) CancelOwnerDrag(businessID, owner string) bool {
	return s.rescheduler.CancelOwner(businessID, owner)
}

func (s *service) ExpireDrags() []string {
	return s.rescheduler.Expire(s.settings.DragTimeout)
}

func (s *service) publishMutation(ctx context.Context, scope Scope, m *Mutation, action string) {
	if m == nil {
		return
	}
	if m.State == MutationRolledBack {
		action = events.ActionRolledBack
	}
	ev := Event{ID: m.EventID, BusinessID: scope.BusinessID, Module: scope.Module, Source: m.Source}
	if m.Event != nil {
		ev = *m.Event
		if ev.BusinessID == "" {
			ev.BusinessID = scope.BusinessID
		}
	}
	s.publish(ctx, action, ev, m.ID)
}

func (s *service) publish(ctx context.Context, action string, ev Event, mutationID string) {
	if s.publisher == nil {
		return
	}
	change := events.CalendarChange{
		Action:     action,
		BusinessID: ev.BusinessID,
		Module:     string(ev.Module),
		EventID:    ev.ID,
		Source:     string(ev.Source),
		MutationID: mutationID,
		Timestamp:  s.now().UTC(),
	}
	if err := s.publisher.PublishCalendarChange(ctx, change); err != nil {
		s.logger.Error("Failed to publish calendar change",
			zap.String("action", action), zap.String("event_id", ev.ID), zap.Error(err))
	}
}

package calendar

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapMinutes is the drag granularity for timed moves.
const SnapMinutes = 15

type DragState string

const (
	DragIdle      DragState = "idle"
	DragDragging  DragState = "dragging"
	DragDropped   DragState = "dropped"
	DragCancelled DragState = "cancelled"
)

// DragMode selects time-of-day or day-only moves.
type DragMode string

const (
	DragModeTime DragMode = "time"
	DragModeDay  DragMode = "day"
)

// Column is the horizontal extent of one day column in an hour grid.
type Column struct {
	Key   string    `json:"key"`
	Date  time.Time `json:"date"`
	Left  float64   `json:"left"`
	Right float64   `json:"right"`
}

// Cell is one day cell in a month grid.
type Cell struct {
	Key    string    `json:"key"`
	Date   time.Time `json:"date"`
	Left   float64   `json:"left"`
	Top    float64   `json:"top"`
	Right  float64   `json:"right"`
	Bottom float64   `json:"bottom"`
}

// BeginDrag describes a gesture starting on a rendered event block.
type BeginDrag struct {
	GestureID string
	Owner     string
	Scope     Scope
	Event     Event
	OriginKey string
	// OffsetY is the gesture's vertical offset inside the block.
	OffsetY float64
	View    ViewMode
	Columns []Column
	Cells   []Cell
	Layout  LayoutConfig
}

// Preview is the live, uncommitted position of a dragged event.
type Preview struct {
	GestureID string    `json:"gesture_id"`
	EventID   string    `json:"event_id"`
	ColumnKey string    `json:"column_key"`
	Minutes   int       `json:"minutes"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// DropResult is the outcome of a finished gesture.
type DropResult struct {
	State    DragState `json:"state"`
	Preview  Preview   `json:"preview"`
	Original Event     `json:"original"`
	Mutation *Mutation `json:"mutation,omitempty"`
}

// DragSession owns one in-flight gesture. It never touches canonical state;
// the preview is folded in only by Rescheduler.End.
type DragSession struct {
	gestureID string
	owner     string
	scope     Scope
	event     Event
	originKey string
	offsetY   float64
	duration  time.Duration
	mode      DragMode
	columns   []Column
	cells     []Cell
	layout    LayoutConfig

	state      DragState
	preview    Preview
	startedAt  time.Time
	lastSignal time.Time
}

// NewDragSession captures the gesture start. The preview starts at the
// event's current position.
func NewDragSession(req BeginDrag, now time.Time) (*DragSession, error) {
	if req.Event.ID == "" {
		return nil, NewValidationError("drag requires an event id")
	}
	if req.Event.End.Before(req.Event.Start) {
		return nil, ErrInvalidTimeRange
	}
	if req.GestureID == "" {
		req.GestureID = uuid.NewString()
	}
	if req.Owner == "" {
		req.Owner = req.GestureID
	}
	if req.OriginKey == "" {
		req.OriginKey = DayKey(req.Event.Start)
	}

	mode := DragModeTime
	if req.Event.AllDay || req.View == ViewModeMonth {
		mode = DragModeDay
	}

	loc := req.Event.Start.Location()
	columns := make([]Column, len(req.Columns))
	for i, c := range req.Columns {
		c.Date = columnDate(c.Key, c.Date, loc)
		columns[i] = c
	}
	cells := make([]Cell, len(req.Cells))
	for i, c := range req.Cells {
		c.Date = columnDate(c.Key, c.Date, loc)
		cells[i] = c
	}

	cfg := req.Layout.Normalize()
	s := &DragSession{
		gestureID:  req.GestureID,
		owner:      req.Owner,
		scope:      req.Scope,
		event:      req.Event,
		originKey:  req.OriginKey,
		offsetY:    req.OffsetY,
		duration:   req.Event.Duration(),
		mode:       mode,
		columns:    columns,
		cells:      cells,
		layout:     cfg,
		state:      DragDragging,
		startedAt:  now,
		lastSignal: now,
	}
	s.preview = Preview{
		GestureID: s.gestureID,
		EventID:   req.Event.ID,
		ColumnKey: req.OriginKey,
		Minutes:   int(req.Event.Start.Sub(startOfDay(req.Event.Start).Add(time.Duration(cfg.DayStartHour) * time.Hour)).Minutes()),
		Start:     req.Event.Start,
		End:       req.Event.End,
	}
	return s, nil
}

func columnDate(key string, date time.Time, loc *time.Location) time.Time {
	if !date.IsZero() {
		return startOfDay(date)
	}
	if t, err := time.ParseInLocation("2006-01-02", key, loc); err == nil {
		return t
	}
	return time.Time{}
}

func (s *DragSession) GestureID() string { return s.gestureID }
func (s *DragSession) Owner() string     { return s.owner }
func (s *DragSession) State() DragState  { return s.state }
func (s *DragSession) Mode() DragMode    { return s.mode }
func (s *DragSession) Event() Event      { return s.event }
func (s *DragSession) Preview() Preview  { return s.preview }

// Move updates the live preview for a pointer position.
func (s *DragSession) Move(x, y float64, now time.Time) (Preview, error) {
	p, err := s.resolve(x, y)
	if err != nil {
		return s.preview, err
	}
	s.preview = p
	s.lastSignal = now
	return p, nil
}

func (s *DragSession) resolve(x, y float64) (Preview, error) {
	if s.mode == DragModeDay {
		return s.resolveDay(x, y)
	}

	col, ok := nearestColumn(s.columns, x)
	if !ok || col.Date.IsZero() {
		return Preview{}, ErrUnresolvedDrop
	}

	dayTotal := s.layout.DayMinutes()
	durMinutes := int(math.Ceil(s.duration.Minutes()))
	maxMinutes := dayTotal - durMinutes
	if maxMinutes < 0 {
		maxMinutes = 0
	}
	maxMinutes = maxMinutes / SnapMinutes * SnapMinutes

	candidateTop := y - s.offsetY
	minutes := candidateTop / s.layout.HourHeight * 60
	snapped := int(math.Round(minutes/SnapMinutes)) * SnapMinutes
	if snapped < 0 {
		snapped = 0
	}
	if snapped > maxMinutes {
		snapped = maxMinutes
	}

	start := col.Date.Add(time.Duration(s.layout.DayStartHour)*time.Hour + time.Duration(snapped)*time.Minute)
	return Preview{
		GestureID: s.gestureID,
		EventID:   s.event.ID,
		ColumnKey: col.Key,
		Minutes:   snapped,
		Start:     start,
		End:       start.Add(s.duration),
	}, nil
}

// resolveDay keeps the time of day and moves only the date.
func (s *DragSession) resolveDay(x, y float64) (Preview, error) {
	var key string
	var date time.Time
	if len(s.cells) > 0 {
		cell, ok := nearestCell(s.cells, x, y)
		if !ok {
			return Preview{}, ErrUnresolvedDrop
		}
		key, date = cell.Key, cell.Date
	} else {
		col, ok := nearestColumn(s.columns, x)
		if !ok {
			return Preview{}, ErrUnresolvedDrop
		}
		key, date = col.Key, col.Date
	}
	if date.IsZero() {
		return Preview{}, ErrUnresolvedDrop
	}

	origin := startOfDay(s.event.Start)
	timeOfDay := s.event.Start.Sub(origin)
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, origin.Location()).Add(timeOfDay)
	end := start.Add(s.duration)
	if s.event.AllDay {
		days := int(math.Round(s.duration.Hours() / 24))
		if days < 1 {
			days = 1
		}
		end = start.AddDate(0, 0, days)
	}
	return Preview{
		GestureID: s.gestureID,
		EventID:   s.event.ID,
		ColumnKey: key,
		Minutes:   int(timeOfDay.Minutes()),
		Start:     start,
		End:       end,
	}, nil
}

// nearestColumn hit-tests x, falling back to the column with the closest edge.
func nearestColumn(columns []Column, x float64) (Column, bool) {
	if len(columns) == 0 {
		return Column{}, false
	}
	best, bestDist := 0, math.Inf(1)
	for i, c := range columns {
		if x >= c.Left && x < c.Right {
			return c, true
		}
		d := math.Min(math.Abs(x-c.Left), math.Abs(x-c.Right))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return columns[best], true
}

func nearestCell(cells []Cell, x, y float64) (Cell, bool) {
	if len(cells) == 0 {
		return Cell{}, false
	}
	best, bestDist := 0, math.Inf(1)
	for i, c := range cells {
		if x >= c.Left && x < c.Right && y >= c.Top && y < c.Bottom {
			return c, true
		}
		dx := math.Max(0, math.Max(c.Left-x, x-c.Right))
		dy := math.Max(0, math.Max(c.Top-y, y-c.Bottom))
		if d := math.Hypot(dx, dy); d < bestDist {
			best, bestDist = i, d
		}
	}
	return cells[best], true
}

// Committer applies a drop. The Reconciler implements it.
type Committer interface {
	Reschedule(ctx context.Context, scope Scope, id string, start, end time.Time) (*Mutation, error)
}

// Rescheduler tracks in-flight drag sessions, one per owner.
type Rescheduler struct {
	mu        sync.Mutex
	sessions  map[string]*DragSession
	owners    map[string]string
	committer Committer
	logger    *zap.Logger
	now       func() time.Time
}

func NewRescheduler(committer Committer, logger *zap.Logger) *Rescheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rescheduler{
		sessions:  make(map[string]*DragSession),
		owners:    make(map[string]string),
		committer: committer,
		logger:    logger,
		now:       time.Now,
	}
}

// Begin starts a drag. A previous gesture of the same owner is cancelled.
func (r *Rescheduler) Begin(req BeginDrag) (Preview, error) {
	if err := req.Scope.Validate(); err != nil {
		return Preview{}, err
	}
	session, err := NewDragSession(req, r.now())
	if err != nil {
		return Preview{}, err
	}

	owner := ownerKey(session.scope.BusinessID, session.owner)
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.owners[owner]; ok {
		if old, ok := r.sessions[prev]; ok {
			old.state = DragCancelled
			delete(r.sessions, prev)
			dragTotal.WithLabelValues("superseded").Inc()
		}
	}
	if _, exists := r.sessions[session.gestureID]; exists {
		return Preview{}, NewValidationError("gesture already in progress")
	}
	r.sessions[session.gestureID] = session
	r.owners[owner] = session.gestureID
	activeDrags.Set(float64(len(r.sessions)))
	return session.preview, nil
}

// Move updates the preview of an active gesture. Gestures of another
// business are reported as stale.
func (r *Rescheduler) Move(businessID, gestureID string, x, y float64) (Preview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[gestureID]
	if !ok || s.scope.BusinessID != businessID {
		return Preview{}, ErrStaleGesture
	}
	return s.Move(x, y, r.now())
}

// End finishes a gesture and commits its final position. The session is
// removed whatever the outcome. An unresolvable target leaves the event
// where it was.
func (r *Rescheduler) End(ctx context.Context, businessID, gestureID string, x, y float64) (*DropResult, error) {
	s, ok := r.take(businessID, gestureID)
	if !ok {
		return nil, ErrStaleGesture
	}

	result := &DropResult{Original: s.event}
	p, err := s.resolve(x, y)
	if err != nil {
		s.state = DragCancelled
		result.State = DragCancelled
		result.Preview = s.preview
		result.Preview.Start, result.Preview.End = s.event.Start, s.event.End
		result.Preview.ColumnKey = s.originKey
		dragTotal.WithLabelValues("unresolved").Inc()
		r.logger.Info("Drag ended without a drop target",
			zap.String("gesture_id", gestureID), zap.String("event_id", s.event.ID))
		return result, err
	}

	s.preview = p
	s.state = DragDropped
	result.State = DragDropped
	result.Preview = p
	if p.Start.Equal(s.event.Start) && p.End.Equal(s.event.End) {
		dragTotal.WithLabelValues("unchanged").Inc()
		return result, nil
	}

	m, err := r.committer.Reschedule(ctx, s.scope, s.event.ID, p.Start, p.End)
	result.Mutation = m
	if err != nil {
		dragTotal.WithLabelValues("failed").Inc()
		r.logger.Error("Failed to commit drag",
			zap.String("gesture_id", gestureID), zap.String("event_id", s.event.ID), zap.Error(err))
		return result, err
	}
	dragTotal.WithLabelValues("dropped").Inc()
	return result, nil
}

// Cancel terminates a gesture without committing.
func (r *Rescheduler) Cancel(businessID, gestureID string) error {
	s, ok := r.take(businessID, gestureID)
	if !ok {
		return ErrStaleGesture
	}
	s.state = DragCancelled
	dragTotal.WithLabelValues("cancelled").Inc()
	return nil
}

// CancelOwner cancels whatever gesture the owner has in flight.
func (r *Rescheduler) CancelOwner(businessID, owner string) bool {
	r.mu.Lock()
	gestureID, ok := r.owners[ownerKey(businessID, owner)]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.Cancel(businessID, gestureID) == nil
}

// Expire cancels gestures that have not been signalled within idle.
func (r *Rescheduler) Expire(idle time.Duration) []string {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []string
	for id, s := range r.sessions {
		if s.lastSignal.Before(cutoff) {
			s.state = DragCancelled
			r.removeLocked(s)
			expired = append(expired, id)
			dragTotal.WithLabelValues("expired").Inc()
		}
	}
	if len(expired) > 0 {
		r.logger.Info("Expired abandoned drag sessions", zap.Strings("gesture_ids", expired))
	}
	return expired
}

// Active returns the preview of an in-flight gesture.
func (r *Rescheduler) Active(gestureID string) (Preview, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[gestureID]
	if !ok {
		return Preview{}, false
	}
	return s.preview, true
}

// Len is the number of in-flight gestures.
func (r *Rescheduler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Rescheduler) take(businessID, gestureID string) (*DragSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[gestureID]
	if !ok || s.scope.BusinessID != businessID {
		return nil, false
	}
	r.removeLocked(s)
	return s, true
}

func (r *Rescheduler) removeLocked(s *DragSession) {
	delete(r.sessions, s.gestureID)
	owner := ownerKey(s.scope.BusinessID, s.owner)
	if r.owners[owner] == s.gestureID {
		delete(r.owners, owner)
	}
	activeDrags.Set(float64(len(r.sessions)))
}

func ownerKey(businessID, owner string) string {
	return businessID + "/" + owner
}

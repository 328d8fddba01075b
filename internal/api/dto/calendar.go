package dto

import (
	"time"

	"github.com/BizNestAI/bizzy-sub000/internal/domain/calendar"
)

// ViewQuery selects a view. Pivot is a date (2006-01-02) or an RFC3339 time.
type ViewQuery struct {
	Mode   string `form:"mode" binding:"omitempty,view_mode"`
	Pivot  string `form:"pivot"`
	TZ     string `form:"tz"`
	Module string `form:"module" binding:"omitempty,calendar_module"`
}

type CreateEventRequest struct {
	Module      string    `json:"module" binding:"required,calendar_module"`
	Type        string    `json:"type" binding:"required,calendar_type"`
	Title       string    `json:"title" binding:"required,not_empty,max=255"`
	Description string    `json:"description"`
	Start       time.Time `json:"start" binding:"required"`
	End         time.Time `json:"end" binding:"required"`
	AllDay      bool      `json:"all_day"`
	Location    string    `json:"location" binding:"max=255"`
	Status      string    `json:"status" binding:"max=32"`
}

// Draft converts the request for the given business.
func (r CreateEventRequest) Draft(businessID string) calendar.Draft {
	return calendar.Draft{
		BusinessID:  businessID,
		Module:      calendar.Module(r.Module),
		Type:        calendar.EventType(r.Type),
		Title:       r.Title,
		Description: r.Description,
		Start:       r.Start,
		End:         r.End,
		AllDay:      r.AllDay,
		Location:    r.Location,
		Status:      r.Status,
	}
}

type UpdateEventRequest struct {
	Title       *string    `json:"title,omitempty" binding:"omitempty,not_empty,max=255"`
	Description *string    `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	AllDay      *bool      `json:"all_day,omitempty"`
	Location    *string    `json:"location,omitempty" binding:"omitempty,max=255"`
	Status      *string    `json:"status,omitempty" binding:"omitempty,max=32"`
}

func (r UpdateEventRequest) Patch() calendar.Patch {
	return calendar.Patch{
		Title:       r.Title,
		Description: r.Description,
		Start:       r.Start,
		End:         r.End,
		AllDay:      r.AllDay,
		Location:    r.Location,
		Status:      r.Status,
	}
}

// EventListResponse is the flat event list for a view range.
type EventListResponse struct {
	Events   []calendar.Event `json:"events"`
	From     time.Time        `json:"from"`
	To       time.Time        `json:"to"`
	Total    int              `json:"total"`
	Degraded bool             `json:"degraded"`
	Mocked   bool             `json:"mocked"`
	Banner   string           `json:"banner,omitempty"`
}

type MutationResponse struct {
	Mutation *calendar.Mutation `json:"mutation"`
	Error    string             `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Kind    string            `json:"kind,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ColumnRequest struct {
	Key   string  `json:"key" binding:"required"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

type CellRequest struct {
	Key    string  `json:"key" binding:"required"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// DragStartRequest carries the on-screen geometry the client rendered.
type DragStartRequest struct {
	EventID   string          `json:"event_id" binding:"required"`
	GestureID string          `json:"gesture_id"`
	Module    string          `json:"module" binding:"omitempty,calendar_module"`
	OriginKey string          `json:"origin_key"`
	OffsetY   float64         `json:"offset_y"`
	View      string          `json:"view" binding:"required,view_mode"`
	TZ        string          `json:"tz"`
	Columns   []ColumnRequest `json:"columns" binding:"omitempty,dive"`
	Cells     []CellRequest   `json:"cells" binding:"omitempty,dive"`
}

// DragStart converts the request. loc is the viewer's zone.
func (r DragStartRequest) DragStart(businessID, owner string, loc *time.Location) calendar.DragStart {
	req := calendar.DragStart{
		Scope:     calendar.Scope{BusinessID: businessID, Module: calendar.Module(r.Module)},
		EventID:   r.EventID,
		GestureID: r.GestureID,
		Owner:     owner,
		OriginKey: r.OriginKey,
		OffsetY:   r.OffsetY,
		View:      calendar.ViewMode(r.View),
		Location:  loc,
	}
	for _, col := range r.Columns {
		req.Columns = append(req.Columns, calendar.Column{Key: col.Key, Left: col.Left, Right: col.Right})
	}
	for _, cell := range r.Cells {
		req.Cells = append(req.Cells, calendar.Cell{
			Key: cell.Key, Left: cell.Left, Top: cell.Top, Right: cell.Right, Bottom: cell.Bottom,
		})
	}
	return req
}

type DragPointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Drag frame types exchanged on the drag websocket.
const (
	FrameStart     = "start"
	FrameMove      = "move"
	FrameEnd       = "end"
	FrameCancel    = "cancel"
	FramePreview   = "preview"
	FrameDrop      = "drop"
	FrameCancelled = "cancelled"
	FrameError     = "error"
)

// DragFrame is a client message on the drag websocket.
type DragFrame struct {
	Type      string            `json:"type"`
	GestureID string            `json:"gesture_id,omitempty"`
	Start     *DragStartRequest `json:"start,omitempty"`
	X         float64           `json:"x"`
	Y         float64           `json:"y"`
}

// DragReply is a server message on the drag websocket.
type DragReply struct {
	Type      string               `json:"type"`
	GestureID string               `json:"gesture_id,omitempty"`
	Preview   *calendar.Preview    `json:"preview,omitempty"`
	Drop      *calendar.DropResult `json:"drop,omitempty"`
	Error     string               `json:"error,omitempty"`
	Kind      string               `json:"kind,omitempty"`
}

type SettingsResponse struct {
	WeekStart   string                `json:"week_start"`
	Layout      calendar.LayoutConfig `json:"layout"`
	DragTimeout string                `json:"drag_timeout"`
	SnapMinutes int                   `json:"snap_minutes"`
}

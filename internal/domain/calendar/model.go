package calendar

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Module string

const (
	ModuleFinance     Module = "finance"
	ModuleTax         Module = "tax"
	ModuleMarketing   Module = "marketing"
	ModuleInvestments Module = "investments"
	ModuleOps         Module = "ops"
)

// Modules lists every dashboard module in display order.
var Modules = []Module{ModuleFinance, ModuleTax, ModuleMarketing, ModuleInvestments, ModuleOps}

type EventType string

const (
	EventTypeJob      EventType = "job"
	EventTypeLead     EventType = "lead"
	EventTypeDeadline EventType = "deadline"
	EventTypeInvoice  EventType = "invoice"
	EventTypeMeeting  EventType = "meeting"
	EventTypePost     EventType = "post"
	EventTypeTask     EventType = "task"
)

// Source records which of the three sources of truth produced an event.
type Source string

const (
	SourcePersisted    Source = "persisted"
	SourceMock         Source = "mock"
	SourceLocalPending Source = "local-pending"
)

const (
	mockIDPrefix  = "mock-"
	localIDPrefix = "local-"

	StatusScheduled = "scheduled"
)

// Event is a single calendar entry as seen by the renderer.
type Event struct {
	ID          string    `json:"id" gorm:"type:varchar(128);primaryKey"`
	BusinessID  string    `json:"business_id" gorm:"type:varchar(64);not null;index:idx_calendar_event_business"`
	Module      Module    `json:"module" gorm:"type:varchar(32);not null;index:idx_calendar_event_module"`
	Type        EventType `json:"type" gorm:"type:varchar(32);not null"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Start       time.Time `json:"start" gorm:"column:start_time;not null;index:idx_calendar_event_start"`
	End         time.Time `json:"end" gorm:"column:end_time;not null;index:idx_calendar_event_end"`
	AllDay      bool      `json:"all_day" gorm:"not null;default:false"`
	Location    string    `json:"location,omitempty" gorm:"type:varchar(255)"`
	Status      string    `json:"status" gorm:"type:varchar(32);not null;default:'scheduled'"`
	Source      Source    `json:"source" gorm:"-"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

func (Event) TableName() string { return "calendar_events" }

// BeforeCreate assigns the server-side id for persisted records.
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// AfterFind tags rows loaded from the database.
func (e *Event) AfterFind(tx *gorm.DB) error {
	e.Source = SourcePersisted
	return nil
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Overlaps reports whether the event intersects the half-open range [from, to).
func (e Event) Overlaps(from, to time.Time) bool {
	return e.Start.Before(to) && e.End.After(from)
}

// Override relocates a non-persisted event. It never carries anything but times.
type Override struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Draft is the payload for creating an event.
type Draft struct {
	BusinessID  string    `json:"business_id"`
	Module      Module    `json:"module"`
	Type        EventType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	AllDay      *bool      `json:"all_day,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Status      *string    `json:"status,omitempty"`
}

// TimeOnly reports whether the patch changes nothing but start/end.
func (p Patch) TimeOnly() bool {
	return p.Title == nil && p.Description == nil && p.AllDay == nil &&
		p.Location == nil && p.Status == nil
}

// HasTime reports whether the patch moves the event.
func (p Patch) HasTime() bool {
	return p.Start != nil || p.End != nil
}

// Apply returns a copy of e with the patch applied.
func (p Patch) Apply(e Event) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.AllDay != nil {
		e.AllDay = *p.AllDay
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if e.AllDay {
		e.Start, e.End = normalizeAllDay(e.Start, e.End)
	}
	return e
}

// Scope identifies one business/module slice of session state.
type Scope struct {
	BusinessID string `json:"business_id"`
	Module     Module `json:"module,omitempty"`
}

// Key is the storage key for the scope.
func (s Scope) Key() string {
	module := string(s.Module)
	if module == "" {
		module = "all"
	}
	return s.BusinessID + ":" + module
}

func (s Scope) Validate() error {
	if strings.TrimSpace(s.BusinessID) == "" {
		return ErrMissingBusiness
	}
	if s.Module != "" && !IsValidModule(s.Module) {
		return ErrInvalidModule
	}
	return nil
}

// SourceOf classifies an id by its namespace.
func SourceOf(id string) Source {
	switch {
	case strings.HasPrefix(id, mockIDPrefix):
		return SourceMock
	case strings.HasPrefix(id, localIDPrefix):
		return SourceLocalPending
	default:
		return SourcePersisted
	}
}

// mockModule extracts the module from a mock-<module>-<type>-<unix> id.
func mockModule(id string) Module {
	if !strings.HasPrefix(id, mockIDPrefix) {
		return ""
	}
	parts := strings.SplitN(strings.TrimPrefix(id, mockIDPrefix), "-", 2)
	if m := Module(parts[0]); IsValidModule(m) {
		return m
	}
	return ""
}

// NewLocalID returns a fresh id in the local namespace.
func NewLocalID() string {
	return localIDPrefix + uuid.NewString()
}

// Validation methods
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.BusinessID) == "" {
		return ErrMissingBusiness
	}
	if strings.TrimSpace(d.Title) == "" {
		return NewValidationError("title is required")
	}
	if !IsValidModule(d.Module) {
		return ErrInvalidModule
	}
	if !IsValidEventType(d.Type) {
		return ErrInvalidEventType
	}
	if d.Start.IsZero() || d.End.IsZero() {
		return NewValidationError("start and end are required")
	}
	if d.End.Before(d.Start) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Event materializes the draft. All-day drafts are widened to whole days.
func (d Draft) Event(id string, source Source) Event {
	start, end := d.Start, d.End
	if d.AllDay {
		start, end = normalizeAllDay(start, end)
	}
	status := d.Status
	if status == "" {
		status = StatusScheduled
	}
	return Event{
		ID:          id,
		BusinessID:  d.BusinessID,
		Module:      d.Module,
		Type:        d.Type,
		Title:       d.Title,
		Description: d.Description,
		Start:       start,
		End:         end,
		AllDay:      d.AllDay,
		Location:    d.Location,
		Status:      status,
		Source:      source,
	}
}

func IsValidModule(m Module) bool {
	switch m {
	case ModuleFinance, ModuleTax, ModuleMarketing, ModuleInvestments, ModuleOps:
		return true
	}
	return false
}

func IsValidEventType(t EventType) bool {
	switch t {
	case EventTypeJob, EventTypeLead, EventTypeDeadline, EventTypeInvoice,
		EventTypeMeeting, EventTypePost, EventTypeTask:
		return true
	}
	return false
}

// normalizeAllDay snaps an all-day span to midnight boundaries covering at least one day.
func normalizeAllDay(start, end time.Time) (time.Time, time.Time) {
	from := startOfDay(start)
	to := startOfDay(end)
	if to.Before(end) || !to.After(from) {
		to = to.AddDate(0, 0, 1)
	}
	return from, to
}

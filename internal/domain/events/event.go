package events

import (
	"time"
)

// Calendar change actions
const (
	ActionCreated     = "created"
	ActionUpdated     = "updated"
	ActionRescheduled = "rescheduled"
	ActionDeleted     = "deleted"
	ActionRolledBack  = "rolled_back"
)

// CalendarChangesChannel is the pub/sub channel dashboard widgets listen on.
const CalendarChangesChannel = "calendar:changes"

// CalendarChange is published after a calendar mutation settles.
type CalendarChange struct {
	Action     string      `json:"action"`
	BusinessID string      `json:"business_id"`
	Module     string      `json:"module,omitempty"`
	EventID    string      `json:"event_id"`
	Source     string      `json:"source"`
	MutationID string      `json:"mutation_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Details    interface{} `json:"details,omitempty"`
}

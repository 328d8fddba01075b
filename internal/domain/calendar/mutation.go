package calendar

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MutationState string

const (
	MutationApplied    MutationState = "applied"
	MutationConfirmed  MutationState = "confirmed"
	MutationRolledBack MutationState = "rolled_back"
)

type MutationKind string

const (
	MutationCreate     MutationKind = "create"
	MutationUpdate     MutationKind = "update"
	MutationDelete     MutationKind = "delete"
	MutationReschedule MutationKind = "reschedule"
)

// Mutation tracks one optimistic write from application to its outcome.
type Mutation struct {
	ID        string        `json:"id"`
	EventID   string        `json:"event_id"`
	Kind      MutationKind  `json:"kind"`
	State     MutationState `json:"state"`
	Source    Source        `json:"source"`
	Event     *Event        `json:"event,omitempty"`
	Err       error         `json:"-"`
	AppliedAt time.Time     `json:"applied_at"`
	SettledAt time.Time     `json:"settled_at,omitempty"`
}

func newMutation(kind MutationKind, eventID string, source Source) *Mutation {
	return &Mutation{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Kind:      kind,
		State:     MutationApplied,
		Source:    source,
		AppliedAt: time.Now(),
	}
}

// Confirm moves an applied mutation to confirmed.
func (m *Mutation) Confirm() error {
	return m.transition(MutationConfirmed, nil)
}

// RollBack moves an applied mutation to rolled_back, recording the cause.
func (m *Mutation) RollBack(cause error) error {
	return m.transition(MutationRolledBack, cause)
}

func (m *Mutation) transition(to MutationState, cause error) error {
	if m.State != MutationApplied {
		return fmt.Errorf("mutation %s: illegal transition %s -> %s", m.ID, m.State, to)
	}
	m.State = to
	m.Err = cause
	m.SettledAt = time.Now()
	return nil
}

// Settled reports whether the mutation reached a terminal state.
func (m *Mutation) Settled() bool {
	return m.State != MutationApplied
}

// ErrorMessage is the user-facing failure text, empty unless rolled back.
func (m *Mutation) ErrorMessage() string {
	if m.Err == nil {
		return ""
	}
	return m.Err.Error()
}

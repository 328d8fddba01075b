package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BizNestAI/bizzy-sub000/internal/domain/calendar"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Snapshot is the durable copy of one scope's calendar session state.
type Snapshot struct {
	ScopeKey   string         `gorm:"type:varchar(160);primaryKey"`
	BusinessID string         `gorm:"type:varchar(64);not null;index"`
	Module     string         `gorm:"type:varchar(32)"`
	State      datatypes.JSON `gorm:"not null"`
	ExpiresAt  *time.Time     `gorm:"index"`
	UpdatedAt  time.Time
}

func (Snapshot) TableName() string {
	return "calendar_session_snapshots"
}

// SnapshotStore is a calendar.SessionStore backed by a SQL table.
type SnapshotStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewSnapshotStore creates a store. A zero ttl keeps snapshots forever.
func NewSnapshotStore(db *gorm.DB, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{db: db, ttl: ttl, now: time.Now}
}

func (s *SnapshotStore) Load(ctx context.Context, scope calendar.Scope) (*calendar.SessionState, error) {
	var snap Snapshot
	err := s.db.WithContext(ctx).First(&snap, "scope_key = ?", scope.Key()).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return calendar.NewSessionState(), nil
		}
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}
	if snap.ExpiresAt != nil && snap.ExpiresAt.Before(s.now()) {
		return calendar.NewSessionState(), nil
	}

	state := calendar.NewSessionState()
	if err := json.Unmarshal(snap.State, state); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	if state.Overrides == nil {
		state.Overrides = make(map[string]calendar.Override)
	}
	return state, nil
}

func (s *SnapshotStore) Save(ctx context.Context, scope calendar.Scope, state *calendar.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}

	snap := Snapshot{
		ScopeKey:   scope.Key(),
		BusinessID: scope.BusinessID,
		Module:     string(scope.Module),
		State:      datatypes.JSON(data),
	}
	if s.ttl > 0 {
		expires := s.now().Add(s.ttl).UTC()
		snap.ExpiresAt = &expires
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&snap).Error
	if err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return nil
}

// PurgeExpired deletes snapshots past their expiry and returns how many went.
func (s *SnapshotStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", s.now().UTC()).
		Delete(&Snapshot{})
	return result.RowsAffected, result.Error
}

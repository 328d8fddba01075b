package calendar

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository is the event store the engine consumes. Writes only touch rows
// of the given business; a row owned by another business is reported as
// ErrNotFound. Any failure other than a missing record surfaces as a
// network-kind *Error.
type Repository interface {
	ListEvents(ctx context.Context, query ListQuery) ([]Event, error)
	CreateEvent(ctx context.Context, draft Draft) (*Event, error)
	UpdateEvent(ctx context.Context, businessID, id string, patch Patch) error
	DeleteEvent(ctx context.Context, businessID, id string) error
}

// ListQuery defines the filtering options for listing events
type ListQuery struct {
	BusinessID string
	From       time.Time
	To         time.Time
	Module     Module
}

// repository implements the Repository interface
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new calendar repository instance
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListEvents(ctx context.Context, query ListQuery) ([]Event, error) {
	var events []Event

	q := r.db.WithContext(ctx).Model(&Event{}).
		Where("business_id = ?", query.BusinessID).
		Where("start_time < ? AND end_time > ?", query.To.UTC(), query.From.UTC())
	if query.Module != "" {
		q = q.Where("module = ?", query.Module)
	}

	if err := q.Order("start_time ASC").Order("id ASC").Find(&events).Error; err != nil {
		return nil, NetworkError("list events", err)
	}
	return events, nil
}

func (r *repository) CreateEvent(ctx context.Context, draft Draft) (*Event, error) {
	event := draft.Event("", SourcePersisted)
	event.Start, event.End = event.Start.UTC(), event.End.UTC()
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, NetworkError("create event", err)
	}
	return &event, nil
}

func (r *repository) UpdateEvent(ctx context.Context, businessID, id string, patch Patch) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event Event
		if err := tx.First(&event, "id = ? AND business_id = ?", id, businessID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return NetworkError("update event", err)
		}

		updated := patch.Apply(event)
		// a start-only move keeps the stored duration
		if patch.Start != nil && patch.End == nil {
			updated.End = updated.Start.Add(event.Duration())
		}
		updated.Start, updated.End = updated.Start.UTC(), updated.End.UTC()
		if updated.End.Before(updated.Start) {
			return ErrInvalidTimeRange
		}
		if err := tx.Save(&updated).Error; err != nil {
			return NetworkError("update event", err)
		}
		return nil
	})
}

func (r *repository) DeleteEvent(ctx context.Context, businessID, id string) error {
	result := r.db.WithContext(ctx).Delete(&Event{}, "id = ? AND business_id = ?", id, businessID)
	if result.Error != nil {
		return NetworkError("delete event", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

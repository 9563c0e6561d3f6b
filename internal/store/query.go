package store

import (
	"context"
	"errors"

	"github.com/Mocksi/bilan-sub001/internal/model"
	"gorm.io/gorm"
)

var ErrInvalidRange = errors.New("invalid range: end before start")

// Filter restricts a range scan. Start/End bound the event timestamp as a
// half-open interval [start, end) in epoch milliseconds.
type Filter struct {
	Start *int64
	End   *int64

	Types          []string
	UserID         string
	JourneyID      string
	ConversationID string

	Limit  int
	Offset int
}

func (f Filter) Validate() error {
	if f.Start != nil && f.End != nil && *f.End < *f.Start {
		return ErrInvalidRange
	}
	return nil
}

// QueryEvents runs a filtered range scan, ordered by event timestamp.
// Callers must never rely on insertion order; the explicit sort is what
// aggregation logic downstream depends on.
func QueryEvents(ctx context.Context, db *gorm.DB, f Filter) ([]model.Event, error) {
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	qdb := db.WithContext(ctx).Model(&model.Event{})
	if f.Start != nil {
		qdb = qdb.Where("timestamp >= ?", *f.Start)
	}
	if f.End != nil {
		qdb = qdb.Where("timestamp < ?", *f.End)
	}
	if len(f.Types) == 1 {
		qdb = qdb.Where("event_type = ?", f.Types[0])
	} else if len(f.Types) > 1 {
		qdb = qdb.Where("event_type IN ?", f.Types)
	}
	if f.UserID != "" {
		qdb = qdb.Where("user_id = ?", f.UserID)
	}
	if f.JourneyID != "" {
		qdb = qdb.Where("journey_id = ?", f.JourneyID)
	}
	if f.ConversationID != "" {
		qdb = qdb.Where("conversation_id = ?", f.ConversationID)
	}
	if f.Limit > 0 {
		qdb = qdb.Limit(f.Limit)
	}
	if f.Offset > 0 {
		qdb = qdb.Offset(f.Offset)
	}

	var rows []model.Event
	if err := qdb.Order("timestamp ASC, event_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetEvent is a point lookup; absence is ok=false, not an error.
func GetEvent(ctx context.Context, db *gorm.DB, eventID string) (model.Event, bool, error) {
	if db == nil {
		return model.Event{}, false, gorm.ErrInvalidDB
	}
	var e model.Event
	err := db.WithContext(ctx).Where("event_id = ?", eventID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Event{}, false, nil
	}
	if err != nil {
		return model.Event{}, false, err
	}
	return e, true, nil
}

// RecentEvents lists the newest events for dashboard drill-down.
func RecentEvents(ctx context.Context, db *gorm.DB, limit int) ([]model.Event, error) {
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []model.Event
	err := db.WithContext(ctx).
		Order("timestamp DESC, event_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountEvents doubles as the status probe: a failing count means the
// store is unreachable.
func CountEvents(ctx context.Context, db *gorm.DB) (int64, error) {
	if db == nil {
		return 0, gorm.ErrInvalidDB
	}
	var n int64
	err := db.WithContext(ctx).Model(&model.Event{}).Count(&n).Error
	return n, err
}

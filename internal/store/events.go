package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mocksi/bilan-sub001/internal/model"
	"github.com/Mocksi/bilan-sub001/internal/obs"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordError reports a single rejected event inside a batch.
type RecordError struct {
	Index   int    `json:"index"`
	EventID string `json:"event_id,omitempty"`
	Reason  string `json:"reason"`
}

// BatchOutcome is the per-batch result of an insert: a record-level
// failure never aborts its siblings, and duplicates are counted apart
// from both successes and hard failures.
type BatchOutcome struct {
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Errors    []RecordError `json:"errors,omitempty"`

	// InsertedIDs carries the ids confirmed written, for callers that
	// act only on durable rows. Not part of the wire response.
	InsertedIDs []string `json:"-"`
}

func validateEvent(e *model.Event) error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("missing event_id")
	}
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("missing user_id")
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("missing timestamp")
	}
	if !model.ValidEventType(e.EventType) {
		return fmt.Errorf("unknown event_type %q", e.EventType)
	}
	// turn_sequence is positive or null, never zero.
	if e.TurnSequence != nil && *e.TurnSequence <= 0 {
		e.TurnSequence = nil
	}
	if len(e.Properties) == 0 {
		e.Properties = datatypes.JSON([]byte("{}"))
	}
	return nil
}

// InsertEventsBatch validates, deduplicates, and persists a batch.
// Duplicates, inside the batch or against existing rows, are silent
// skips. The existing-id probe plus OnConflict DoNothing keeps the insert
// idempotent under retries on the single-writer store.
func InsertEventsBatch(ctx context.Context, db *gorm.DB, events []model.Event) (BatchOutcome, error) {
	var out BatchOutcome
	if db == nil {
		return out, gorm.ErrInvalidDB
	}
	if len(events) == 0 {
		return out, nil
	}

	seen := make(map[string]bool, len(events))
	valid := make([]model.Event, 0, len(events))
	for i := range events {
		e := events[i]
		if err := validateEvent(&e); err != nil {
			out.Errors = append(out.Errors, RecordError{Index: i, EventID: e.EventID, Reason: err.Error()})
			continue
		}
		if seen[e.EventID] {
			out.Skipped++
			continue
		}
		seen[e.EventID] = true
		valid = append(valid, e)
	}
	if len(valid) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(valid))
	for _, e := range valid {
		ids = append(ids, e.EventID)
	}
	existing := map[string]bool{}
	for start := 0; start < len(ids); start += 500 {
		end := start + 500
		if end > len(ids) {
			end = len(ids)
		}
		var found []string
		if err := db.WithContext(ctx).
			Model(&model.Event{}).
			Where("event_id IN ?", ids[start:end]).
			Pluck("event_id", &found).Error; err != nil {
			return out, fmt.Errorf("check existing events: %w", err)
		}
		for _, id := range found {
			existing[id] = true
		}
	}

	rows := make([]model.Event, 0, len(valid))
	for _, e := range valid {
		if existing[e.EventID] {
			out.Skipped++
			continue
		}
		rows = append(rows, e)
	}
	if len(rows) == 0 {
		return out, nil
	}

	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, 200).Error; err != nil {
		return out, err
	}
	out.Processed = len(rows)
	out.InsertedIDs = make([]string, 0, len(rows))
	for _, e := range rows {
		out.InsertedIDs = append(out.InsertedIDs, e.EventID)
	}
	return out, nil
}

// Writer owns the write path. AfterCommit fires exactly once per call
// that durably persisted at least one row. It is the single call site
// for cache invalidation, and it runs only after the write committed.
type Writer struct {
	DB          *gorm.DB
	Stats       *obs.Stats
	AfterCommit func()
}

func (w *Writer) InsertEvents(ctx context.Context, events []model.Event) (BatchOutcome, error) {
	start := time.Now()
	out, err := InsertEventsBatch(ctx, w.DB, events)
	w.Stats.ObserveDBFlush(out.Processed, time.Since(start), err)
	if err == nil && out.Processed > 0 && w.AfterCommit != nil {
		w.AfterCommit()
	}
	return out, err
}

func (w *Writer) InsertEvent(ctx context.Context, e model.Event) (BatchOutcome, error) {
	return w.InsertEvents(ctx, []model.Event{e})
}

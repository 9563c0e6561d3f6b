package correlate

import (
	"context"
	"encoding/json"

	"github.com/Mocksi/bilan-sub001/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MigrateVoteTurnIDs rewrites legacy vote rows so their property bag
// carries the canonical turnId. The rewrite is append-only in effect: it
// adds the canonical name and leaves everything else, including the legacy
// promptId, in place. Rows already carrying a turnId are untouched, so the
// migration is idempotent and safe to run at every startup.
func MigrateVoteTurnIDs(ctx context.Context, db *gorm.DB, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 200
	}

	var migrated int64
	lastID := ""
	for {
		var rows []model.Event
		if err := db.WithContext(ctx).
			Where("event_type = ? AND event_id > ?", model.TypeVoteCast, lastID).
			Order("event_id ASC").
			Limit(batchSize).
			Find(&rows).Error; err != nil {
			return migrated, err
		}
		if len(rows) == 0 {
			return migrated, nil
		}
		lastID = rows[len(rows)-1].EventID

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, row := range rows {
				props := Properties(row)
				if stringProp(props, PropTurnID) != "" {
					continue
				}
				if props == nil {
					props = map[string]any{}
				}
				props[PropTurnID] = ResolveTurnID(props, row.EventID)
				b, err := json.Marshal(props)
				if err != nil {
					return err
				}
				if err := tx.Model(&model.Event{}).
					Where("event_id = ?", row.EventID).
					Update("properties", datatypes.JSON(b)).Error; err != nil {
					return err
				}
				migrated++
			}
			return nil
		})
		if err != nil {
			return migrated, err
		}
	}
}

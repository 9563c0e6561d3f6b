package migrate

import (
	"context"
	"strings"

	"github.com/Mocksi/bilan-sub001/internal/model"
	"gorm.io/gorm"
)

func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	gdb := db.WithContext(ctx)
	if err := gdb.AutoMigrate(&model.Event{}); err != nil {
		return err
	}

	if strings.EqualFold(db.Dialector.Name(), "postgres") {
		// GIN index for key-path extraction on the properties blob.
		if err := gdb.Exec(`CREATE INDEX IF NOT EXISTS idx_events_properties ON events USING GIN (properties)`).Error; err != nil {
			return err
		}
	}

	return nil
}

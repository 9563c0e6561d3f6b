package testkit

import (
	"fmt"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/Mocksi/bilan-sub001/internal/model"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB returns an in-memory sqlite database with schema migrated.
// It mirrors the production embedded store (single connection, serialized
// writes) so store and analytics tests run against the real dialect.
var dbSeq atomic.Int64

func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	// The name must be unique per call: with cache=shared, two opens of the
	// same DSN within a process share one database.
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", url.QueryEscape(t.Name()), dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("gorm.Open(sqlite): %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("gdb.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(&model.Event{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return gdb
}

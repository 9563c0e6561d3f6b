package query

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Mocksi/bilan-sub001/internal/obs"
	"github.com/Mocksi/bilan-sub001/internal/store"
)

type SystemStatus string

const (
	SystemStatusRunning     SystemStatus = "running"
	SystemStatusMaintenance SystemStatus = "maintenance"
	SystemStatusException   SystemStatus = "exception"
)

func StatusHandler(db *gorm.DB, maintenanceMode bool, authEnabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maintenanceMode {
			respondOK(c, gin.H{
				"status":       SystemStatusMaintenance,
				"auth_enabled": authEnabled,
				"message":      "maintenance",
			})
			return
		}
		if db == nil {
			respondOK(c, gin.H{
				"status":       SystemStatusException,
				"auth_enabled": authEnabled,
				"message":      "database not configured",
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		n, err := store.CountEvents(ctx, db)
		if err != nil {
			respondOK(c, gin.H{
				"status":       SystemStatusException,
				"auth_enabled": authEnabled,
				"message":      "database unavailable",
			})
			return
		}
		respondOK(c, gin.H{
			"status":       SystemStatusRunning,
			"auth_enabled": authEnabled,
			"events":       n,
		})
	}
}

// StatsHandler dumps the in-process counters for operators.
func StatsHandler(stats *obs.Stats) gin.HandlerFunc {
	return func(c *gin.Context) {
		respondOK(c, stats.SnapshotNow())
	}
}

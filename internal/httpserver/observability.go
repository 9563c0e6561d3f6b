package httpserver

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mocksi/bilan-sub001/internal/obs"
)

func observabilityMiddleware(stats *obs.Stats) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		stats.ObserveHTTP(c.Writer.Status(), time.Since(start))
	}
}

package query

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mocksi/bilan-sub001/internal/analytics"
	"github.com/Mocksi/bilan-sub001/internal/store"
)

func DashboardHandler(engine *analytics.Engine) gin.HandlerFunc {
	return snapshotHandler(func(c *gin.Context, r analytics.Range) (*analytics.Dashboard, error) {
		return engine.Dashboard(c.Request.Context(), r, parseBucket(c))
	})
}

func VotesHandler(engine *analytics.Engine) gin.HandlerFunc {
	return snapshotHandler(func(c *gin.Context, r analytics.Range) (*analytics.Dashboard, error) {
		return engine.Votes(c.Request.Context(), r, parseBucket(c))
	})
}

func JourneysHandler(engine *analytics.Engine) gin.HandlerFunc {
	return snapshotHandler(func(c *gin.Context, r analytics.Range) (*analytics.Dashboard, error) {
		return engine.Journeys(c.Request.Context(), r)
	})
}

func TurnsHandler(engine *analytics.Engine) gin.HandlerFunc {
	return snapshotHandler(func(c *gin.Context, r analytics.Range) (*analytics.Dashboard, error) {
		return engine.Turns(c.Request.Context(), r)
	})
}

func snapshotHandler(run func(c *gin.Context, r analytics.Range) (*analytics.Dashboard, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := parseRange(c, time.Now().UTC())
		if err != nil {
			respondErr(c, http.StatusBadRequest, err.Error())
			return
		}
		d, err := run(c, r)
		if err != nil {
			if errors.Is(err, store.ErrInvalidRange) {
				respondErr(c, http.StatusBadRequest, err.Error())
				return
			}
			respondErr(c, http.StatusServiceUnavailable, "analytics unavailable")
			return
		}
		respondOK(c, d)
	}
}

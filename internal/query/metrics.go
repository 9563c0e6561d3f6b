package query

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mocksi/bilan-sub001/internal/metrics"
)

var (
	errInvalidStart = errors.New("invalid start (epoch millis expected)")
	errInvalidEnd   = errors.New("invalid end (epoch millis expected)")
)

func MetricsTodayHandler(recorder *metrics.RedisRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		s, ok, err := recorder.Today(ctx, time.Now())
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, "metrics unavailable")
			return
		}
		if !ok {
			respondErr(c, http.StatusNotImplemented, "metrics not configured")
			return
		}
		respondOK(c, s)
	}
}

func ActiveSeriesHandler(recorder *metrics.RedisRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end, err := parseDayWindow(c)
		if err != nil {
			respondErr(c, http.StatusBadRequest, err.Error())
			return
		}
		bucket := strings.TrimSpace(c.DefaultQuery("bucket", "day"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		series, err := recorder.ActiveSeries(ctx, start, end, bucket)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, "metrics unavailable")
			return
		}
		respondOK(c, gin.H{"series": series})
	}
}

func TypeDistributionHandler(recorder *metrics.RedisRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end, err := parseDayWindow(c)
		if err != nil {
			respondErr(c, http.StatusBadRequest, err.Error())
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		items, err := recorder.TypeDistribution(ctx, start, end, limit)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, "metrics unavailable")
			return
		}
		respondOK(c, gin.H{"items": items})
	}
}

func parseDayWindow(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -30)
	end := now

	if v := strings.TrimSpace(c.Query("start")); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidStart
		}
		start = time.UnixMilli(ms).UTC()
	}
	if v := strings.TrimSpace(c.Query("end")); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidEnd
		}
		end = time.UnixMilli(ms).UTC()
	}
	return start, end, nil
}

package query

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mocksi/bilan-sub001/internal/analytics"
)

var symbolicRanges = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

// parseRange resolves the window for an analytics request. Either a
// symbolic ?range=7d|30d|90d anchored at now, or explicit ?start and
// ?end in epoch milliseconds; the default is the trailing 30 days.
func parseRange(c *gin.Context, now time.Time) (analytics.Range, error) {
	startStr := strings.TrimSpace(c.Query("start"))
	endStr := strings.TrimSpace(c.Query("end"))
	sym := strings.TrimSpace(c.Query("range"))

	if startStr != "" || endStr != "" {
		if sym != "" {
			return analytics.Range{}, errors.New("use either range or start/end, not both")
		}
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return analytics.Range{}, errors.New("invalid start (epoch millis expected)")
		}
		end := now.UnixMilli()
		if endStr != "" {
			end, err = strconv.ParseInt(endStr, 10, 64)
			if err != nil {
				return analytics.Range{}, errors.New("invalid end (epoch millis expected)")
			}
		}
		r := analytics.Range{Start: start, End: end}
		return r, r.Validate()
	}

	if sym == "" {
		sym = "30d"
	}
	span, ok := symbolicRanges[sym]
	if !ok {
		return analytics.Range{}, errors.New("unknown range (expected 7d, 30d, or 90d)")
	}
	end := now.UnixMilli()
	return analytics.Range{Start: end - span.Milliseconds(), End: end}, nil
}

func parseBucket(c *gin.Context) string {
	if strings.TrimSpace(c.Query("bucket")) == analytics.BucketWeek {
		return analytics.BucketWeek
	}
	return analytics.BucketDay
}

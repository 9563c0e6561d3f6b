package query

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Mocksi/bilan-sub001/internal/correlate"
	"github.com/Mocksi/bilan-sub001/internal/model"
	"github.com/Mocksi/bilan-sub001/internal/store"
)

func RecentEventsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if limit <= 0 || limit > 500 {
			limit = 50
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		rows, err := store.RecentEvents(ctx, db, limit)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		respondOK(c, gin.H{"events": rows, "count": len(rows)})
	}
}

func GetEventHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID := strings.TrimSpace(c.Param("eventId"))
		if eventID == "" {
			respondErr(c, http.StatusBadRequest, "missing event id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		e, ok, err := store.GetEvent(ctx, db, eventID)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		if !ok {
			respondErr(c, http.StatusNotFound, "event not found")
			return
		}
		respondOK(c, e)
	}
}

// SearchEventsHandler exposes the raw filtered scan: time window, type
// set, and identity filters, paginated.
func SearchEventsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.Filter{
			UserID:         strings.TrimSpace(c.Query("userId")),
			JourneyID:      strings.TrimSpace(c.Query("journeyId")),
			ConversationID: strings.TrimSpace(c.Query("conversationId")),
		}

		if v := strings.TrimSpace(c.Query("start")); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				respondErr(c, http.StatusBadRequest, "invalid start")
				return
			}
			f.Start = &n
		}
		if v := strings.TrimSpace(c.Query("end")); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				respondErr(c, http.StatusBadRequest, "invalid end")
				return
			}
			f.End = &n
		}
		for _, typ := range strings.Split(c.Query("types"), ",") {
			typ = strings.TrimSpace(typ)
			if typ == "" {
				continue
			}
			if !model.ValidEventType(typ) {
				respondErr(c, http.StatusBadRequest, "unknown event type "+typ)
				return
			}
			f.Types = append(f.Types, typ)
		}
		f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
		if f.Limit <= 0 || f.Limit > 1000 {
			f.Limit = 100
		}
		f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
		if f.Offset < 0 {
			f.Offset = 0
		}

		if err := f.Validate(); err != nil {
			respondErr(c, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		rows, err := store.QueryEvents(ctx, db, f)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		respondOK(c, gin.H{"events": rows, "count": len(rows)})
	}
}

// TurnCorrelationHandler pairs a turn with its vote by canonical turn id.
func TurnCorrelationHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		turnID := strings.TrimSpace(c.Param("turnId"))
		if turnID == "" {
			respondErr(c, http.StatusBadRequest, "missing turn id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		corr, ok, err := correlate.ResolveTurnVoteCorrelation(ctx, db, turnID)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		if !ok {
			respondErr(c, http.StatusNotFound, "turn not found")
			return
		}
		respondOK(c, corr)
	}
}

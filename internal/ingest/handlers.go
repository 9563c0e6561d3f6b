package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mocksi/bilan-sub001/internal/metrics"
	"github.com/Mocksi/bilan-sub001/internal/model"
	"github.com/Mocksi/bilan-sub001/internal/queue"
	"github.com/Mocksi/bilan-sub001/internal/store"
)

const eventsTopic = "events"

// BatchHandler ingests one event or an array of events synchronously
// through the writer. The response always carries the per-record
// outcome: a bad record never fails its siblings.
func BatchHandler(w *store.Writer, recorder *metrics.RedisRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c, 5<<20)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		items, err := decodeOneOrMany[EventPayload](body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		now := time.Now().UTC()

		rows := make([]model.Event, 0, len(items))
		for _, p := range items {
			rows = append(rows, p.ToModel(now))
		}

		out, err := w.InsertEvents(c.Request.Context(), rows)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
			return
		}

		// Only rows confirmed written reach the counters. A duplicate
		// skipped on a client retry must not inflate them.
		if recorder != nil && out.Processed > 0 {
			inserted := make(map[string]bool, len(out.InsertedIDs))
			for _, id := range out.InsertedIDs {
				inserted[id] = true
			}
			accepted := make([]model.Event, 0, len(out.InsertedIDs))
			for _, row := range rows {
				if inserted[row.EventID] {
					accepted = append(accepted, row)
					delete(inserted, row.EventID)
				}
			}
			metricsCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			recorder.ObserveBatch(metricsCtx, accepted)
			cancel()
		}

		c.JSON(http.StatusOK, out)
	}
}

// TrackHandler is the fire-and-forget path: payloads are published to
// the events topic and persisted by the consumer. Validation beyond
// shape happens at flush time.
func TrackHandler(publisher queue.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c, 5<<20)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		items, err := decodeOneOrMany[EventPayload](body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		now := time.Now().UTC()

		// Validate the whole batch before publishing anything: a bad
		// trailing item must not leave earlier items half applied.
		for _, p := range items {
			if strings.TrimSpace(p.UserID) == "" || !model.ValidEventType(strings.TrimSpace(p.EventType)) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing userId or unknown eventType"})
				return
			}
		}

		for _, p := range items {
			payload, _ := json.Marshal(NSQMessage{
				Type:     "event",
				Received: now,
				Payload:  mustJSON(p),
				Meta: &MessageMeta{
					ClientIP:  c.ClientIP(),
					UserAgent: c.GetHeader("User-Agent"),
				},
			})
			if err := publisher.Publish(eventsTopic, payload); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
				return
			}
		}

		c.Status(http.StatusAccepted)
	}
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func decodeOneOrMany[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	if body[0] == byte('[') {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, errors.New("empty array")
		}
		return items, nil
	}
	var item T
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, err
	}
	return []T{item}, nil
}

func readBody(c *gin.Context, limit int64) ([]byte, error) {
	defer c.Request.Body.Close()

	raw := io.LimitReader(c.Request.Body, limit)
	enc := strings.ToLower(strings.TrimSpace(c.GetHeader("Content-Encoding")))
	if strings.Contains(enc, "gzip") {
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(io.LimitReader(zr, limit))
	}
	return io.ReadAll(raw)
}

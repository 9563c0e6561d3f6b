package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mocksi/bilan-sub001/internal/analytics"
	"github.com/Mocksi/bilan-sub001/internal/auth"
	"github.com/Mocksi/bilan-sub001/internal/config"
	"github.com/Mocksi/bilan-sub001/internal/obs"
	"github.com/Mocksi/bilan-sub001/internal/store"
	"github.com/Mocksi/bilan-sub001/internal/testkit"
)

func newTestServer(t *testing.T, cfg config.Config) (*http.Server, *obs.Stats) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testkit.OpenTestDB(t)
	stats := obs.New()
	engine := analytics.NewEngine(db, analytics.WithStats(stats))
	writer := &store.Writer{DB: db, Stats: stats, AfterCommit: engine.InvalidateCache}

	srv := New(cfg, Deps{
		DB:     db,
		Writer: writer,
		Engine: engine,
		Stats:  stats,
	})
	return srv, stats
}

func TestServer_IngestThenQuery(t *testing.T) {
	t.Parallel()

	srv, stats := newTestServer(t, config.Config{HTTPAddr: ":0"})

	body := `{"eventId":"v1","userId":"u1","eventType":"vote_cast","timestamp":` +
		timestampMilli(t, -time.Hour) + `,"properties":{"value":1}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader([]byte(body)))
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/analytics/votes?range=7d", nil)
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("votes: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Code int `json:"code"`
		Data struct {
			Feedback struct {
				TotalVotes int `json:"totalVotes"`
			} `json:"feedback"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != 0 || env.Data.Feedback.TotalVotes != 1 {
		t.Fatalf("unexpected votes snapshot: %s", rec.Body.String())
	}

	if stats.SnapshotNow().HTTP.Requests < 2 {
		t.Fatalf("expected http requests observed")
	}
}

func TestServer_HealthzAndMaintenance(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{HTTPAddr: ":0", MaintenanceMode: true})

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz during maintenance: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/recent", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("query during maintenance: expected 503, got %d", rec.Code)
	}
}

func TestServer_IngestKeyRequired(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{HTTPAddr: ":0", IngestKey: "sekret"})

	body := []byte(`{"userId":"u1","eventType":"user_action","timestamp":1700000000000}`)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader(body))
	req.Header.Set("X-Ingest-Key", "sekret")
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_DashboardAuth(t *testing.T) {
	t.Parallel()

	secret := []byte("0123456789abcdef0123456789abcdef")
	hash, err := auth.HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	srv, _ := newTestServer(t, config.Config{
		HTTPAddr:              ":0",
		AuthSecret:            secret,
		DashboardPasswordHash: hash,
		AuthTokenTTL:          time.Hour,
	})

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/dashboard", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, err := auth.SignToken(secret, "dashboard", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	// Ingest stays open: the dashboard token gate does not cover writes.
	rec = httptest.NewRecorder()
	body := []byte(`{"userId":"u1","eventType":"user_action","timestamp":1700000000000}`)
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected open ingest, got %d", rec.Code)
	}
}

func TestServer_TrackWithoutQueue(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{HTTPAddr: ":0"})

	rec := httptest.NewRecorder()
	body := []byte(`{"userId":"u1","eventType":"user_action"}`)
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events/track", bytes.NewReader(body)))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a publisher, got %d", rec.Code)
	}
}

func timestampMilli(t *testing.T, offset time.Duration) string {
	t.Helper()
	b, err := json.Marshal(time.Now().Add(offset).UnixMilli())
	if err != nil {
		t.Fatalf("marshal ts: %v", err)
	}
	return string(b)
}

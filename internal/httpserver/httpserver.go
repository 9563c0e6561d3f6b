package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swgui "github.com/swaggest/swgui/v3"
	"gorm.io/gorm"

	"github.com/Mocksi/bilan-sub001/internal/analytics"
	"github.com/Mocksi/bilan-sub001/internal/config"
	"github.com/Mocksi/bilan-sub001/internal/ingest"
	"github.com/Mocksi/bilan-sub001/internal/metrics"
	"github.com/Mocksi/bilan-sub001/internal/obs"
	"github.com/Mocksi/bilan-sub001/internal/openapi"
	"github.com/Mocksi/bilan-sub001/internal/query"
	"github.com/Mocksi/bilan-sub001/internal/queue"
	"github.com/Mocksi/bilan-sub001/internal/store"
)

// Deps bundles the wired components the router needs. Optional pieces
// (publisher, recorder) may be nil; the affected routes degrade to 501.
type Deps struct {
	DB        *gorm.DB
	Writer    *store.Writer
	Engine    *analytics.Engine
	Publisher queue.Publisher
	Recorder  *metrics.RedisRecorder
	Stats     *obs.Stats
}

func New(cfg config.Config, d Deps) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(observabilityMiddleware(d.Stats))
	router.Use(maintenanceMiddleware(cfg.MaintenanceMode))

	router.GET("/openapi.json", func(c *gin.Context) { c.JSON(http.StatusOK, openapi.Spec()) })
	router.GET("/docs/*any", gin.WrapH(swgui.New("bilan API", "/openapi.json", "/docs")))

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/internal/stats", query.StatsHandler(d.Stats))

	authEnabled := len(cfg.AuthSecret) > 0 && cfg.DashboardPasswordHash != ""

	api := router.Group("/api")
	{
		api.GET("/status", query.StatusHandler(d.DB, cfg.MaintenanceMode, authEnabled))
		api.POST("/auth/login", query.LoginHandler(cfg.DashboardPasswordHash, cfg.AuthSecret, cfg.AuthTokenTTL))
	}

	ingestAPI := router.Group("/api", RequireIngestKey(cfg.IngestKey))
	{
		ingestAPI.POST("/events", ingest.BatchHandler(d.Writer, d.Recorder))
		if d.Publisher != nil {
			ingestAPI.POST("/events/track", ingest.TrackHandler(d.Publisher))
		} else {
			ingestAPI.POST("/events/track", notConfigured("queue not configured"))
		}
	}

	queryAPI := router.Group("/api")
	if authEnabled {
		queryAPI.Use(RequireUser(cfg.AuthSecret))
	}
	{
		queryAPI.GET("/events", query.SearchEventsHandler(d.DB))
		queryAPI.GET("/events/recent", query.RecentEventsHandler(d.DB))
		queryAPI.GET("/events/:eventId", query.GetEventHandler(d.DB))
		queryAPI.GET("/turns/:turnId/correlation", query.TurnCorrelationHandler(d.DB))

		queryAPI.GET("/analytics/dashboard", query.DashboardHandler(d.Engine))
		queryAPI.GET("/analytics/votes", query.VotesHandler(d.Engine))
		queryAPI.GET("/analytics/journeys", query.JourneysHandler(d.Engine))
		queryAPI.GET("/analytics/turns", query.TurnsHandler(d.Engine))

		if d.Recorder != nil {
			queryAPI.GET("/metrics/today", query.MetricsTodayHandler(d.Recorder))
			queryAPI.GET("/metrics/active", query.ActiveSeriesHandler(d.Recorder))
			queryAPI.GET("/metrics/types", query.TypeDistributionHandler(d.Recorder))
		}
	}

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func notConfigured(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotImplemented, gin.H{"code": http.StatusNotImplemented, "err": msg})
	}
}

package main

import (
	"time"

	"analyze-service/config"
	"analyze-service/handlers"
	"analyze-service/middleware"
	"analyze-service/relay"

	"github.com/apex/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	EndPointHealth    = "/health"
	EndPointVersion   = "/version"
	EndPointMetrics   = "/metrics"
	EndPointAnalyze   = "/api/analyze"
	EndPointAnalyzeWS = "/api/analyze/ws"
	EndPointEntries   = "/api/entries"
	EndPointEntry     = "/api/entries/:id"
)

// setupRouter wires the routes. journal is nil when the journal is disabled;
// events may be nil.
func setupRouter(cfg *config.Config, r *relay.Relay, journal handlers.JournalStore, events handlers.EventPublisher) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), requestLogger())

	methods := middleware.RelayMethods
	if journal != nil {
		methods = middleware.JournalMethods
	}
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins, methods))
	// The analyze stream is flushed frame by frame and is never compressed.
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{EndPointAnalyze, EndPointMetrics})))

	health := handlers.NewHealthHandler(r)
	router.GET(EndPointHealth, health.HealthCheck)
	router.GET(EndPointVersion, health.Version)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))

	analyze := handlers.NewAnalyzeHandler(r, events)
	rateLimited := router.Group("/")
	rateLimited.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, time.Minute))
	{
		rateLimited.Any(EndPointAnalyze, analyze.Analyze)
		rateLimited.GET(EndPointAnalyzeWS, analyze.AnalyzeWebSocket)
	}

	if journal != nil {
		entries := handlers.NewJournalHandler(journal)
		authed := router.Group("/")
		authed.Use(middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
		{
			authed.GET(EndPointEntries, entries.ListEntries)
			authed.POST(EndPointEntries, entries.CreateEntry)
			authed.PATCH(EndPointEntry, entries.UpdateEntry)
			authed.DELETE(EndPointEntry, entries.DeleteEntry)
		}
	}

	return router
}

// requestLogger logs one line per request. Request bodies are never logged.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"request_id": middleware.GetRequestID(c),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		}).Debug("http.request")
	}
}

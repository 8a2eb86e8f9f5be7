package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/bookrag/internal/middleware"
	"github.com/xxxsen/bookrag/internal/pkg/response"
)

type RouterDeps struct {
	Ingest        *IngestHandler
	Query         *QueryHandler
	Sources       *SourceHandler
	Profile       *ProfileHandler
	SessionSecret []byte
	// IngestWindow throttles ingestion kickoff per ip/user; zero disables.
	IngestWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	// Query paths work anonymously; the session, when present, only
	// attributes interactions.
	open := api.Group("")
	open.Use(middleware.SessionAuth(deps.SessionSecret, false))
	open.POST("/ingest", middleware.RateLimit(deps.IngestWindow), deps.Ingest.Start)
	open.GET("/ingest/:job_id", deps.Ingest.Job)
	open.POST("/query", deps.Query.Query)
	open.POST("/select", deps.Query.Select)
	open.GET("/sources/:chunk_id", deps.Sources.Get)

	authGroup := api.Group("")
	authGroup.Use(middleware.SessionAuth(deps.SessionSecret, true))
	authGroup.GET("/profile", deps.Profile.Get)
	authGroup.PUT("/profile", deps.Profile.Put)
}

// RegisterRootRoutes hangs the service banner and health probe off the
// engine root, outside the API prefix.
func RegisterRootRoutes(engine *gin.Engine) {
	engine.GET("/", func(c *gin.Context) {
		response.Success(c, gin.H{
			"service": "bookrag",
			"status":  "running",
		})
	})
	engine.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "healthy"})
	})
}

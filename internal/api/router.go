package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photoflow/internal/api/handlers"
	"github.com/your-org/photoflow/internal/api/ws"
	"github.com/your-org/photoflow/internal/auth"
	"github.com/your-org/photoflow/internal/face"
	"github.com/your-org/photoflow/internal/queue"
	"github.com/your-org/photoflow/internal/storage"
)

type RouterConfig struct {
	APIKey string
	DB     *storage.PostgresStore
	MinIO  *storage.MinIOStore
	Jobs   *queue.Manager
	Faces  *face.Service
	Hub    *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Jobs)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Assets
	assetH := handlers.NewAssetHandler(cfg.DB, cfg.Jobs)
	v1.GET("/assets", assetH.List)
	v1.GET("/assets/:id", assetH.Get)
	v1.POST("/assets/:id/refresh", assetH.Refresh)

	// Persons
	personH := handlers.NewPersonHandler(cfg.DB, cfg.Faces, cfg.Jobs)
	v1.GET("/persons", personH.List)
	v1.GET("/persons/:id", personH.Get)
	v1.PUT("/persons/:id", personH.Update)
	v1.POST("/persons/:id/merge", personH.Merge)

	// Jobs
	jobH := handlers.NewJobHandler(cfg.Jobs)
	v1.GET("/jobs", jobH.Counts)
	v1.POST("/jobs/:name", jobH.Trigger)

	return r
}

package handler

import (
	"docingest-go/internal/middleware"
	"docingest-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// Handlers 汇总注册路由所需的处理器。
type Handlers struct {
	Ingest *IngestHandler
	Search *SearchHandler
	Health *HealthHandler
}

// NewRouter 创建 Gin 引擎并注册全部路由。jwtManager 为 nil 时 API 不做认证。
func NewRouter(h Handlers, jwtManager *token.JWTManager) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 健康检查不需要认证
	r.GET("/health", h.Health.Health)
	r.GET("/health/detailed", h.Health.Detailed)
	r.GET("/version", h.Health.Version)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(jwtManager))
	{
		ingest := apiV1.Group("/ingest")
		{
			ingest.POST("", h.Ingest.Start)
			ingest.GET("/job/:jobId", h.Ingest.GetJob)
			ingest.GET("/job/:jobId/ws", h.Ingest.WatchJob)
			ingest.POST("/collection/init", h.Ingest.InitCollection)
		}

		search := apiV1.Group("/search")
		{
			search.POST("", h.Search.Search)
			search.GET("/documents", h.Search.ListDocuments)
			search.DELETE("/documents/:docId", h.Search.DeleteDocument)
		}
	}
	return r
}

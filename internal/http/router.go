package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/graphrag-core/internal/http/handlers"
	httpMW "github.com/yungbote/graphrag-core/internal/http/middleware"
	"github.com/yungbote/graphrag-core/internal/observability"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	Metrics         *observability.Metrics
	ServiceName     string
	AllowOrigins    []string
	MaxRequestBytes int64

	QueryHandler   *httpH.QueryHandler
	AnalyzeHandler *httpH.AnalyzeHandler
	EntityHandler  *httpH.EntityHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	service := cfg.ServiceName
	if service == "" {
		service = "graphrag"
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(service))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowOrigins))
	r.Use(httpMW.BodyLimit(cfg.MaxRequestBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Retrieval
	if cfg.QueryHandler != nil {
		r.POST("/query", cfg.QueryHandler.Query)
		r.POST("/query/async", cfg.QueryHandler.Submit)
		r.GET("/query/async/:id", cfg.QueryHandler.Result)
	}
	if cfg.AnalyzeHandler != nil {
		r.POST("/analyze", cfg.AnalyzeHandler.Analyze)
	}

	// Graph
	if cfg.EntityHandler != nil {
		r.GET("/entities/:name/related", cfg.EntityHandler.Related)
	}

	return r
}

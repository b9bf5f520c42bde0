package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	pricehandler "stock_pipeline/internal/feature/prices/transport/handler"
	universehandler "stock_pipeline/internal/feature/universe/transport/handler"
	windowhandler "stock_pipeline/internal/feature/window/transport/handler"
	"stock_pipeline/internal/platform/http/handler"
	jwtmw "stock_pipeline/internal/platform/jwt"
	"stock_pipeline/internal/platform/metrics"
)

// Handlers groups the HTTP handlers served by the read API.
type Handlers struct {
	Partitions *pricehandler.PartitionHandler
	Features   *windowhandler.FeatureHandler
	Universe   *universehandler.UniverseHandler
	Checks     map[string]handler.Check
	Metrics    *metrics.Registry // optional
}

// NewRouter builds the gin engine. Data routes require a bearer token when
// jwtSecret is non-empty.
func NewRouter(h Handlers, jwtSecret string) *gin.Engine {
	r := gin.Default()
	if h.Metrics != nil {
		r.Use(h.Metrics.GinMiddleware())
	}

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health(h.Checks))
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	markets := r.Group("/markets/:market")
	if jwtSecret != "" {
		// → リクエストヘッダーに JWT が必要になる
		markets.Use(jwtmw.AuthRequired(jwtSecret))
	} else {
		slog.Warn("server.jwt_secret is not set; data routes are unauthenticated")
	}
	{
		markets.GET("/partitions", h.Partitions.ListPartitions)
		markets.GET("/partitions/:date", h.Partitions.GetPartition)
		markets.GET("/features/:ticker", h.Features.GetFeatures)
		markets.GET("/tickers", h.Universe.List)
	}

	return r
}

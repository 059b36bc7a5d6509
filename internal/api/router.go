package api

import (
	"context"
	"net/http"
	"time"

	"waste-reduction-api/internal/api/handlers/health"
	recommendHandler "waste-reduction-api/internal/api/handlers/recommend"
	"waste-reduction-api/internal/api/middleware"
	recommendService "waste-reduction-api/internal/core/recommend"
	"waste-reduction-api/internal/infrastructure/config"
	"waste-reduction-api/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 查詢逾時；重建走獨立的 refresh 逾時
	timeoutDuration = 30 * time.Second
	// 重建需要重新抓整份資料集，放寬逾時
	refreshTimeout = 300 * time.Second
	// 請求體大小限制 (1MB)，本服務沒有大型上傳
	maxBodySize = 1 << 20
)

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, service *recommendService.Service) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 限流
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	// 重建請求去重
	router.Use(middleware.Deduplication(cfg))

	// 全局中間件：設置超時和服務
	router.Use(func(c *gin.Context) {
		timeout := timeoutDuration
		if c.Request.Method == http.MethodPost {
			timeout = refreshTimeout
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Set("config", cfg)
		c.Set("recommend_service", service)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeout),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  common.ErrCodeRequestTimeout,
			})
			c.Abort()
			return
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		handler := recommendHandler.NewHandler(service)

		recommendations := api.Group("/recommendations")
		{
			recommendations.GET("/content/:product_id", handler.HandleContentRecommendations)
			recommendations.GET("/collaborative/:user_id", handler.HandleCollaborativeRecommendations)
			recommendations.GET("/:user_id", handler.HandleHybridRecommendations)
		}

		api.GET("/pricing/recommendations", handler.HandlePricingRecommendations)
		api.GET("/dead_stock_risk", handler.HandleDeadStockRisk)
		api.GET("/thresholds/:product_id", handler.HandleThreshold)
		api.GET("/categories", handler.HandleCategories)
		api.GET("/users", handler.HandleUsers)
		api.POST("/refresh_data", handler.HandleRefreshData)
	}

	common.LogInfo("Router setup completed")
	return router, nil
}

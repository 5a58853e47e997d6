package api

import (
	"net/http"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/platform/config"
	"github.com/SlpAus/ricebowl-portal/internal/portal"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter 创建带有通用中间件的 gin 引擎并注册所有路由。
// metricsHandler 为 nil 时不暴露 /metrics。
func NewRouter(cfg config.ServerConfig, h *portal.Handler, metricsHandler http.Handler, logger zerolog.Logger) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), portal.RequestLogger(logger))
	router.Use(cors.New(corsConfig(cfg.Cors)))

	SetupRoutes(router, h)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}
	return router
}

func corsConfig(cfg config.CorsConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "If-None-Match"},
		ExposeHeaders: []string{"Content-Length", "ETag"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = cfg.AllowedOrigins
	if len(c.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	}
	return c
}

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine, h *portal.Handler) {
	api := router.Group("/api")
	{
		api.GET("/health", h.GetHealth)
		api.POST("/refresh", h.TriggerRefresh)

		// 视图相关的路由组 /api/view
		viewRoutes := api.Group("/view")
		{
			viewRoutes.GET("", h.GetView)
			viewRoutes.GET("/stream", h.StreamView)
			viewRoutes.GET("/report", h.GetReport)
			viewRoutes.POST("/weeks/:week/toggle", h.ToggleWeek)
		}
	}
}

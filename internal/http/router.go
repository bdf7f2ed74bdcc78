package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"notify_poller/internal/config"
	"notify_poller/internal/http/controller"
	"notify_poller/internal/http/middleware"
)

func NewRouter(cfg *config.Config, handler *controller.Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		otelgin.Middleware(cfg.Telemetry.ServiceName),
		middleware.ZapLogger(logger),
		middleware.ZapRecovery(logger),
	)

	router.GET("/health", func(c *gin.Context) {
		c.Status(200)
	})

	// Ingestion endpoints are called by trusted backends and carry user_id
	// in the body.
	router.POST("/notifications", handler.CreateNotification)
	router.POST("/notifications/publish", handler.PublishNotification)

	authed := router.Group("/notifications", middleware.JWTAuth(cfg.JWTSecret, logger))
	authed.GET("", handler.ListNotifications)
	authed.GET("/unread-count", handler.UnreadCount)
	authed.PUT("/mark-all-read", handler.MarkAllRead)
	authed.PUT("/:id/read", handler.MarkRead)
	authed.DELETE("/:id", handler.DeleteNotification)

	return router
}

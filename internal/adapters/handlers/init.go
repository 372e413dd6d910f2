package handlers

import (
	"net/http"

	"github.com/klipperplace/pnpService/internal/config"
	"github.com/klipperplace/pnpService/internal/interfaces"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/internal/middleware/swagger"

	"github.com/gin-gonic/gin"
)

// Handler - структура для обработчиков HTTP-запросов
type Handler struct {
	usecase interfaces.Usecases
	logger  *logging.Logger
}

// NewHandler создает новый экземпляр Handler
func NewHandler(usecase interfaces.Usecases, logger *logging.Logger) *Handler {
	return &Handler{
		usecase: usecase,
		logger:  logger.WithPrefix("HANDLER"),
	}
}

// ProvideRouter настраивает и возвращает HTTP-роутер
func ProvideRouter(h *Handler, cfg *config.AppConfig, swagCfg *swagger.Config) http.Handler {
	gin.SetMode(cfg.GinMode)

	router := gin.Default()

	// Swagger
	swagger.Setup(router, swagCfg)

	// Logger Middleware
	router.Use(LoggingMiddleware(h.logger))

	// Группа API v1
	v1 := router.Group("/api/v1")
	{
		commands := v1.Group("/commands")
		{
			commands.POST("", h.ExecuteCommand)
			commands.POST("/batch", h.ExecuteBatch)
		}

		queue := v1.Group("/queue")
		{
			queue.POST("", h.EnqueueCommand)
			queue.POST("/process", h.ProcessQueue)
			queue.GET("", h.GetQueue)
			queue.DELETE("", h.ClearQueue)
			queue.DELETE("/:id", h.RemoveQueuedCommand)
		}

		system := v1.Group("/system")
		{
			system.POST("/cancel", h.CancelExecution)
			system.POST("/pause", h.PauseExecution)
			system.POST("/resume", h.ResumeExecution)
			system.POST("/reset", h.ResetExecution)
		}

		safety := v1.Group("/safety")
		{
			safety.GET("/limits", h.GetLimits)
			safety.PUT("/limits", h.UpdateLimits)
			safety.GET("/events", h.GetSafetyEvents)
			safety.DELETE("/events", h.ClearSafetyEvents)
			safety.POST("/events/resolve", h.ResolveSafetyEvent)
			safety.GET("/statistics", h.GetSafetyStatistics)
			safety.GET("/state", h.GetSafetyState)
			safety.POST("/emergency_stop", h.EmergencyStop)
			safety.DELETE("/emergency_stop", h.ClearEmergencyStop)
		}

		cache := v1.Group("/cache")
		{
			cache.GET("/statistics", h.GetCacheStatistics)
			cache.POST("/invalidate", h.InvalidateCache)
			cache.DELETE("", h.ClearCache)
		}

		v1.GET("/state", h.GetDeviceState)
		v1.DELETE("/state", h.ResetDeviceState)
		v1.GET("/history", h.GetHistory)
		v1.GET("/statistics", h.GetStatistics)
		v1.GET("/status", h.GetServiceStatus)
	}

	return router
}

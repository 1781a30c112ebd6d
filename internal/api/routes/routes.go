package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"webreplay/internal/api/handlers"
	"webreplay/internal/api/middleware"
	"webreplay/internal/config"
)

func SetupRoutes(cfg *config.Config, h *handlers.Handler, log zerolog.Logger) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORSMiddleware())
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.HealthCheck)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
		{
			protected.GET("/ws/events", h.EventsWebSocket)

			recordings := protected.Group("/recordings")
			{
				recordings.GET("", h.GetRecordings)
				recordings.POST("/start", h.StartRecording)
				recordings.GET("/:id", h.GetRecording)
				recordings.GET("/:id/status", h.GetRecordingStatus)
				recordings.GET("/:id/log", h.GetRecordingLog)
				recordings.DELETE("/:id", h.DeleteRecording)
				recordings.POST("/:id/replay", h.ReplayRecording)
			}

			runs := protected.Group("/runs")
			{
				runs.GET("", h.GetRuns)
				runs.GET("/:id", h.GetRun)
				runs.POST("/:id/cancel", h.CancelRun)
			}

			schedules := protected.Group("/schedules")
			{
				schedules.GET("", h.GetSchedules)
				schedules.POST("", h.CreateSchedule)
				schedules.DELETE("/:recording_id", h.DeleteSchedule)
			}
		}
	}

	return router
}

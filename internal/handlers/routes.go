package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/middleware"
	"task-tracker/backend/internal/monitoring"
	"task-tracker/backend/internal/services"
)

type RouterConfig struct {
	Tasks      services.TaskService
	Users      services.UserService
	Reconciler Reconciler
	Logger     *slog.Logger
	// DatabaseCheck names the health check reported by /health/db.
	DatabaseCheck string
}

func SetupRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithLog(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS())
	router.Use(monitoring.MetricsMiddleware())

	router.GET("/health", monitoring.HealthHandler())
	router.GET("/health/db", monitoring.DatabaseHealthHandler(cfg.DatabaseCheck))
	router.GET("/ready", monitoring.ReadinessHandler())
	router.GET("/live", monitoring.LivenessHandler())
	router.GET("/metrics", monitoring.MetricsHandler())

	taskHandler := NewTaskHandler(cfg.Tasks, logger)
	userHandler := NewUserHandler(cfg.Users, logger)

	api := router.Group("/api")
	{
		tasks := api.Group("/tasks")
		tasks.GET("", taskHandler.GetTasks)
		tasks.POST("", taskHandler.CreateTask)
		tasks.GET("/:id", taskHandler.GetTaskByID)
		tasks.PUT("/:id", taskHandler.UpdateTask)
		tasks.DELETE("/:id", taskHandler.DeleteTask)

		users := api.Group("/users")
		users.GET("", userHandler.GetUsers)
		users.POST("", userHandler.CreateUser)
		users.GET("/:id", userHandler.GetUserByID)
		users.PUT("/:id", userHandler.UpdateUser)
		users.DELETE("/:id", userHandler.DeleteUser)

		if cfg.Reconciler != nil {
			maintenance := NewMaintenanceHandler(cfg.Reconciler, logger)
			api.POST("/maintenance/reconcile", maintenance.Reconcile)
		}
	}

	return router
}

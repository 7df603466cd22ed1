package server

import (
	"context"
	"net/http"
	"time"

	"loadhub-core-svc/src/internal/dependency"
	"loadhub-core-svc/src/internal/metrics"
	"loadhub-core-svc/src/internal/middleware"
	"loadhub-core-svc/src/internal/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(deps *dependency.Manager) {
	router := deps.Router
	router.Use(enableCORS)

	setupHealthEndpoint(deps)
	setupPublicRoutes(router, deps)
	setupAuthRoutes(router, deps)
	setupLoadRoutes(router, deps)
	setupFleetRoutes(router, deps)
	setupAdminRoutes(router, deps)
}

func setupHealthEndpoint(deps *dependency.Manager) {
	router := deps.Router
	cfg := deps.Config

	router.GET("/health", func(c *gin.Context) {
		log.Debug("Health check endpoint requested")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		mongoStatus := "disabled"
		if deps.Mongodb != nil {
			mongoStatus = statusOf(deps.Mongodb.Ping(ctx))
		}

		redisStatus := "disabled"
		if deps.Redis != nil {
			redisStatus = statusOf(deps.Redis.Ping(ctx))
		}

		rabbitStatus := "disabled"
		if deps.RabbitMQ != nil {
			rabbitStatus = "connected"
			if deps.RabbitMQ.Conn.IsClosed() {
				rabbitStatus = "disconnected"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   cfg.App.Name,
			"version":   cfg.App.Version,
			"engine":    cfg.Database.Engine,
			"mongodb":   mongoStatus,
			"redis":     redisStatus,
			"rabbitmq":  rabbitStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Registry)))
}

func setupPublicRoutes(router *gin.Engine, deps *dependency.Manager) {
	router.GET("/api/v1/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"api_version": "v1",
			"status":      "operational",
			"service":     deps.Config.App.Name,
		})
	})
}

func setupAuthRoutes(router *gin.Engine, deps *dependency.Manager) {
	handler := deps.UserHandler
	auth := deps.AuthMiddleware
	limit := middleware.RateLimit(deps.Limiters.Auth, deps.Metrics)

	group := router.Group("/api/v1/auth")
	{
		group.POST("/register", setRouteName("register"), limit, handler.Register)
		group.POST("/login", setRouteName("login"), limit, handler.Login)
		group.POST("/refresh", setRouteName("refreshToken"), limit, handler.Refresh)
		group.POST("/forgot-password", setRouteName("forgotPassword"), limit, handler.ForgotPassword)
		group.POST("/reset-password", setRouteName("resetPassword"), limit, handler.ResetPassword)
		group.POST("/logout", setRouteName("logout"), auth.RequireAuth(), handler.Logout)
	}
}

func setupLoadRoutes(router *gin.Engine, deps *dependency.Manager) {
	handler := deps.LoadHandler
	auth := deps.AuthMiddleware

	// Apply route name FIRST, then auth middlewares
	loads := router.Group("/api/v1/loads")
	{
		loads.POST("",
			setRouteName("createLoad"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleCustomer),
			handler.CreateLoad)

		loads.GET("/open",
			setRouteName("listOpenLoads"),
			auth.RequireAuth(),
			handler.ListOpen)

		loads.GET("/mine",
			setRouteName("listMyLoads"),
			auth.RequireAuth(),
			handler.ListMine)

		loads.GET("/stats",
			setRouteName("getLoadStats"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleAdmin),
			handler.GetStats)

		loads.GET("/:id",
			setRouteName("getLoad"),
			auth.RequireAuth(),
			handler.GetLoad)

		loads.POST("/:id/accept",
			setRouteName("acceptLoad"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleOwner),
			middleware.RateLimit(deps.Limiters.LoadAccept, deps.Metrics),
			handler.AcceptLoad)

		loads.POST("/:id/assign",
			setRouteName("assignDriver"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleOwner),
			handler.AssignDriver)

		loads.PATCH("/:id/status",
			setRouteName("updateLoadStatus"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleDriver),
			middleware.RateLimit(deps.Limiters.DriverStatus, deps.Metrics),
			handler.UpdateStatus)

		loads.POST("/:id/cancel",
			setRouteName("cancelLoad"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleCustomer),
			handler.CancelLoad)

		loads.DELETE("/:id",
			setRouteName("deleteLoad"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleCustomer),
			handler.DeleteLoad)
	}
}

func setupFleetRoutes(router *gin.Engine, deps *dependency.Manager) {
	handler := deps.FleetHandler
	auth := deps.AuthMiddleware

	fleet := router.Group("/api/v1/fleet")
	{
		fleet.POST("/vehicles",
			setRouteName("registerVehicle"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleOwner),
			handler.RegisterVehicle)

		fleet.GET("/vehicles",
			setRouteName("listVehicles"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleOwner),
			handler.ListVehicles)

		fleet.GET("/driver/me",
			setRouteName("getDriverProfile"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleDriver),
			handler.GetDriverProfile)

		fleet.PATCH("/driver/availability",
			setRouteName("setDriverAvailability"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleDriver),
			handler.SetAvailability)
	}
}

func setupAdminRoutes(router *gin.Engine, deps *dependency.Manager) {
	handler := deps.UserHandler
	auth := deps.AuthMiddleware

	admin := router.Group("/api/v1/admin")
	{
		admin.GET("/users",
			setRouteName("getUsersList"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleAdmin),
			handler.GetAllUsers)

		admin.PATCH("/users/:id/activate",
			setRouteName("activateUser"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleAdmin),
			handler.ActivateUser)

		admin.PATCH("/users/:id/suspend",
			setRouteName("suspendUser"),
			auth.RequireAuth(),
			auth.RequireRole(models.RoleAdmin),
			handler.SuspendUser)
	}
}

func setRouteName(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("route_name", name)
		c.Next()
	}
}

func enableCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	c.Next()
}

func statusOf(err error) string {
	if err != nil {
		return "disconnected"
	}
	return "connected"
}

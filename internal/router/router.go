package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/seatwatch/seatwatch-backend/internal/config"
	"github.com/seatwatch/seatwatch-backend/internal/handler"
	"github.com/seatwatch/seatwatch-backend/internal/middleware"
	"github.com/seatwatch/seatwatch-backend/internal/response"
	"github.com/seatwatch/seatwatch-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Watch     *handler.WatchHandler
	Stats     *handler.StatsHandler
	MonitorWS *handler.MonitorWSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated session routes
		auth.POST("/logout", middleware.RequireJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Public Stats ───────────────────────────────────────────────
	router.GET("/api/v1/stats", handlers.Stats.Summary)

	// ─── 3. Watches Group (JWT) ────────────────────────────────────────
	watches := router.Group("/api/v1/watches")
	watches.Use(middleware.RequireJWT(authService))
	{
		watches.GET("", handlers.Watch.List)
		watches.POST("", handlers.Watch.Add)
		watches.DELETE("/:id", handlers.Watch.Remove)
	}

	// ─── 4. WebSocket Group (JWT + Staff) ──────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireJWT(authService), middleware.RequireStaff())
	{
		ws.GET("/monitor/stream", handlers.MonitorWS.Stream)
	}

	return router
}

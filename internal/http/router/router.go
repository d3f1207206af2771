package router

import (
	"github.com/gin-gonic/gin"

	"github.com/timecraft/timebank-backend/internal/config"
	"github.com/timecraft/timebank-backend/internal/http/handlers"
	"github.com/timecraft/timebank-backend/internal/http/middleware"
	"github.com/timecraft/timebank-backend/internal/service"
)

// SetupRouter собирает все маршруты приложения.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	offerHandler *handlers.OfferHandler,
	applicationHandler *handlers.ApplicationHandler,
	statsHandler *handlers.StatsHandler,
	profileHandler *handlers.ProfileHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Публичные маршруты. Выдача запросов персонализируется для
	// авторизованного зрителя, поэтому токен читается опционально.
	api.GET("/offers", middleware.OptionalAuthMiddleware(tokenManager), offerHandler.List)
	api.GET("/offers/:id", middleware.UUIDValidator("id"), offerHandler.Get)
	api.GET("/profiles/:id", middleware.UUIDValidator("id"), profileHandler.Get)
	api.GET("/profiles/:id/avatar", middleware.UUIDValidator("id"), profileHandler.GetAvatar)
	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/offers", offerHandler.Create)
		protected.GET("/offers/my", offerHandler.ListMine)
		protected.PUT("/offers/:id", middleware.UUIDValidator("id"), offerHandler.Update)
		protected.DELETE("/offers/:id", middleware.UUIDValidator("id"), offerHandler.Delete)
		protected.POST("/offers/:id/complete", middleware.UUIDValidator("id"), offerHandler.Complete)
		protected.POST("/offers/:id/claim", middleware.UUIDValidator("id"), offerHandler.Claim)
		protected.GET("/offers/:id/transaction", middleware.UUIDValidator("id"), offerHandler.GetTransaction)

		protected.POST("/offers/:id/applications", middleware.UUIDValidator("id"), applicationHandler.Apply)
		protected.GET("/offers/:id/applications", middleware.UUIDValidator("id"), applicationHandler.ListByOffer)
		protected.GET("/applications/my", applicationHandler.ListMine)
		protected.PATCH("/applications/:id", middleware.UUIDValidator("id"), applicationHandler.UpdateStatus)

		protected.GET("/balance", statsHandler.GetBalance)
		protected.GET("/stats", statsHandler.GetStats)
		protected.GET("/transactions", statsHandler.ListTransactions)

		protected.GET("/profiles/me", profileHandler.GetMe)
		protected.PUT("/profiles/me", profileHandler.Update)
		protected.POST("/profiles/me/avatar", profileHandler.UploadAvatar)
	}

	return r
}

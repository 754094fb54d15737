package app

import (
	"ctf_backend/docs"
	"ctf_backend/internal/config"
	"ctf_backend/internal/middleware"
	"ctf_backend/internal/model"
	"ctf_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, caches *caches, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// public routes
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/login", c.auth.Login)
		public.GET("/leaderboard", c.leaderboard.Page)
	}

	// player routes: authenticated, blacklist enforced before anything that
	// touches scoring state
	player := router.Group("/api")
	player.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.BlacklistGuard(caches.blacklist))
	{
		player.GET("/challenges", c.challenge.List)
		player.GET("/challenges/:id", c.challenge.Get)
		player.GET("/challenges/:id/solvers", c.submission.Solvers)
		player.POST("/challenges/:id/submissions", c.submission.Submit)
		player.GET("/challenges/:id/hint", c.hint.Quote)
		player.POST("/challenges/:id/hint", c.hint.Commit)
		player.GET("/search/challenges", c.challenge.Autocomplete)
		player.GET("/leaderboard/rank", c.leaderboard.Rank)
		player.GET("/users/me", c.user.Me)
		player.PUT("/users/me/anonymous", c.user.SetAnonymousMode)
		player.GET("/users/profile/:id", c.user.Profile)
	}

	// organizer routes: challenge authoring
	organizer := router.Group("/api")
	organizer.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RequireRole(model.Organizer))
	{
		organizer.POST("/challenges", c.challenge.Save)
		organizer.POST("/publish", c.challenge.Publish)
		organizer.PUT("/challenges/:id/message", c.challenge.EditMessage)
		organizer.POST("/challenges/:id/archive", c.challenge.Archive)
		organizer.POST("/challenges/:id/unarchive", c.challenge.Unarchive)
		organizer.DELETE("/challenges/:id", c.challenge.Delete)
		organizer.POST("/attachments", c.challenge.UploadAttachment)
	}

	// admin routes
	admin := router.Group("/api")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RequireRole(model.Admin))
	{
		admin.POST("/auth/register", c.auth.Register)
		admin.PUT("/admin/users/:id/points", c.user.SetPoints)
		admin.POST("/admin/users/:id/points", c.user.AddPoints)
		admin.PUT("/admin/users/:id/username", c.user.SetUsername)
		admin.PUT("/admin/users/:id/blacklist", c.user.SetBlacklisted)
		admin.GET("/admin/users/blacklist", c.user.ListBlacklisted)
		admin.DELETE("/admin/users/:id", c.user.Delete)
		admin.POST("/admin/round/reset/quote", c.round.QuoteReset)
		admin.POST("/admin/round/reset", c.round.CommitReset)
	}
}

package app

import (
	"mocktest_backend/docs"
	"mocktest_backend/internal/config"
	"mocktest_backend/internal/middleware"
	"mocktest_backend/internal/model"
	"mocktest_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c, cfg)
	a.registerSessionRoutes(router, c, cfg)
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)

		public.POST("/auth/login", c.auth.Login)
		public.GET("/auth/me", middleware.AuthMiddleware(cfg.JWT.Secret), c.auth.Me)

		public.GET("/tests", c.test.ListTests)
		public.GET("/tests/:testId", c.test.GetTest)
		public.GET("/tests/:testId/questions", c.test.GetTestQuestions)

		public.POST("/results", c.result.PresentResult)
		public.GET("/attempts/:id", c.result.GetAttempt)
	}
}

// Sessions are open to anonymous candidates; a token, when sent, names the
// candidate.
func (a *App) registerSessionRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	sessions := router.Group("/api/sessions")
	sessions.Use(middleware.TryAuthMiddleware(cfg.JWT.Secret))
	{
		sessions.POST("", c.session.StartSession)
		sessions.GET("/:id", c.session.GetSession)
		sessions.GET("/:id/ws", c.session.Feed)
		sessions.POST("/:id/select", c.session.Select)
		sessions.POST("/:id/clear", c.session.Clear)
		sessions.POST("/:id/review", c.session.ToggleReview)
		sessions.POST("/:id/next", c.session.Next)
		sessions.POST("/:id/prev", c.session.Prev)
		sessions.POST("/:id/jump", c.session.Jump)
		sessions.POST("/:id/submit", c.session.Submit)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/tests", c.test.CreateTest)

		admin.POST("/questions", c.question.AddQuestion)
		admin.POST("/questions/upload-csv", c.question.UploadCSV)
		admin.POST("/questions/upload-csv/:subject", c.question.UploadCSV)
		admin.POST("/questions/upload-json", c.question.UploadJSON)
		admin.GET("/questions", c.question.ListQuestions)
		admin.GET("/questions/:testId", c.question.ListTestQuestions)

		admin.GET("/admin/attempts", c.result.ListAttempts)
	}
}

package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/handler"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/response"
	"github.com/quizdesk/quizdesk-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	Attempt     *handler.AttemptHandler
	Batch       *handler.BatchHandler
	StudentMgmt *handler.StudentManagementHandler
	Test        *handler.TestHandler
	Question    *handler.QuestionHandler
	WS          *handler.WSHandler
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for login routes (30 requests per minute per IP).
	loginLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/admin/login", loginLimiter.Middleware(), handlers.Auth.AdminLogin)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Attempt Group (JWT + Latest Login) ─────────────────────────
	attemptAPI := router.Group("/api/v1/attempt")
	{
		attemptAPI.POST("/login", loginLimiter.Middleware(), handlers.Attempt.Login)

		authed := attemptAPI.Group("")
		authed.Use(
			middleware.RequireAttemptJWT(authService),
			middleware.CheckAttemptLogin(authService),
		)
		{
			authed.GET("/paper", handlers.Attempt.GetPaper)
			authed.GET("/state", handlers.Attempt.GetState)
			authed.POST("/answers", handlers.Attempt.SaveAnswer)
			authed.POST("/submit", handlers.Attempt.Submit)
			authed.POST("/logout", handlers.Attempt.Logout)
		}
	}

	// ─── 3. WebSocket Group (Attempt WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireAttemptWSAuth(authService),
		middleware.CheckAttemptLogin(authService),
	)
	{
		ws.GET("/attempt/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Batch management
		adminAPI.GET("/batches", handlers.Batch.List)
		adminAPI.POST("/batches", handlers.Batch.Create)
		adminAPI.GET("/batches/:id", handlers.Batch.Get)
		adminAPI.PUT("/batches/:id", handlers.Batch.Update)
		adminAPI.DELETE("/batches/:id", handlers.Batch.Delete)

		// Student management
		adminAPI.GET("/students", handlers.StudentMgmt.ListStudents)
		adminAPI.POST("/students", handlers.StudentMgmt.CreateStudent)
		adminAPI.POST("/students/import", handlers.StudentMgmt.ImportStudents)
		adminAPI.GET("/students/:id", handlers.StudentMgmt.GetStudent)
		adminAPI.PUT("/students/:id", handlers.StudentMgmt.UpdateStudent)
		adminAPI.DELETE("/students/:id", handlers.StudentMgmt.DeleteStudent)
		adminAPI.POST("/students/:id/reset-login", handlers.StudentMgmt.ResetStudentLogin)

		// Test management
		adminAPI.GET("/tests", handlers.Test.List)
		adminAPI.POST("/tests", handlers.Test.Create)
		adminAPI.GET("/tests/:id", handlers.Test.Get)
		adminAPI.PUT("/tests/:id", handlers.Test.Update)
		adminAPI.DELETE("/tests/:id", handlers.Test.Delete)
		adminAPI.POST("/tests/:id/activate", handlers.Test.SetActive(true))
		adminAPI.POST("/tests/:id/deactivate", handlers.Test.SetActive(false))
		adminAPI.GET("/tests/:id/results", handlers.Test.GetResults)

		// Question management
		adminAPI.GET("/tests/:id/questions", handlers.Question.List)
		adminAPI.POST("/tests/:id/questions", handlers.Question.Add)
		adminAPI.PUT("/tests/:id/questions", handlers.Question.Replace)
	}

	return router
}

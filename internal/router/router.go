package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-placement/internal/config"
	"github.com/stemsi/exstem-placement/internal/handler"
	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/middleware"
	"github.com/stemsi/exstem-placement/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Runner *handler.RunnerHandler
	WS     *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// startLimiter may be nil to disable rate limiting of new attempts.
func SetupRouter(handlers *Handlers, startLimiter *middleware.RateLimiter, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// Credentials are required for the auth cookie, which rules out "*".
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Accept-Language", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())
	router.Use(middleware.Language(i18n.ParseLang(cfg.Language)))
	router.Use(middleware.Token(cfg.AuthCookie))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Public Group ───────────────────────────────────────────────
	public := router.Group("/api/v1")
	public.Use(middleware.NoStore())
	{
		public.GET("/forms", handlers.Runner.ListForms)
	}

	// ─── 2. Session Group (Token Required) ─────────────────────────────
	exams := router.Group("/api/v1/exams/:exam_id")
	exams.Use(middleware.NoStore(), middleware.RequireToken())
	{
		exams.GET("/session", handlers.Runner.GetSession)
		if startLimiter != nil {
			exams.POST("/start", startLimiter.Middleware(), handlers.Runner.Start)
		} else {
			exams.POST("/start", handlers.Runner.Start)
		}
		exams.POST("/answer", handlers.Runner.Answer)
		exams.POST("/finish", handlers.Runner.Finish)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireToken())
	{
		ws.GET("/exams/:exam_id/stream", handlers.WS.ExamStream)
	}

	return router
}

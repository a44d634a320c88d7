package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/quizcoach/internal/config"
	"github.com/stemsi/quizcoach/internal/handler"
	"github.com/stemsi/quizcoach/internal/metrics"
	"github.com/stemsi/quizcoach/internal/middleware"
	"github.com/stemsi/quizcoach/internal/model"
	"github.com/stemsi/quizcoach/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Quiz   *handler.QuizHandler
	WS     *handler.WSHandler
	System *handler.SystemHandler
}

// quizDataMaxAge is how long browsers may cache GET /api/data.
const quizDataMaxAge = 60

// SetupRouter configures the quiz routes and their middlewares.
func SetupRouter(
	handlers *Handlers,
	m *metrics.Metrics,
	gradeLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when configured; allow all otherwise.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID", model.SessionHeader}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", model.SessionHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(m.Middleware())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", m.Handler())

	// ─── Quiz API ──────────────────────────────────────────────────────
	api := router.Group("/api")
	api.Use(middleware.Brotli(5, middleware.DefaultBrotliMinLength), middleware.QuizSession())
	{
		api.GET("/data", middleware.CacheControl(quizDataMaxAge), handlers.Quiz.GetData)
		api.POST("/handler", middleware.NoStore(), gradeLimiter.Middleware(), handlers.Quiz.HandleAnswer)
		api.GET("/final", middleware.NoStore(), handlers.Quiz.GetFinal)
	}

	// ─── WebSocket ─────────────────────────────────────────────────────
	ws := router.Group("/ws/api")
	ws.Use(middleware.QuizSession())
	{
		ws.GET("/stream", handlers.WS.QuizStream)
	}

	return router
}

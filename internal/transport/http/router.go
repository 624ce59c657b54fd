package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handlers groups the handler instances for route setup.
type Handlers struct {
	Quiz *QuizHandler
	Feed *FeedHandler
	WS   *WSHandler
}

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	AllowedOrigins []string
	Lecturer       Authorizer
	Log            zerolog.Logger
}

// NewRouter wires every route onto a gin engine.
func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	SetupValidator()

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Student-Key"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(RequestID())
	router.Use(AccessLog(cfg.Log))

	router.GET("/healthz", func(c *gin.Context) {
		success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	lecturer := RequireLecturer(cfg.Lecturer, cfg.Log)
	course := router.Group("/api/courses/:courseId")

	quizzes := course.Group("/quizzes")
	{
		quizzes.GET("", h.Quiz.List)
		quizzes.POST("", lecturer, h.Quiz.Create)
		quizzes.GET("/:quizId", h.Quiz.Get)
		quizzes.GET("/:quizId/full", lecturer, h.Quiz.GetFull)
		quizzes.PUT("/:quizId", lecturer, h.Quiz.UpdateTitle)
		quizzes.PUT("/:quizId/status", lecturer, h.Quiz.UpdateStatus)
		quizzes.DELETE("/:quizId", lecturer, h.Quiz.Delete)
		quizzes.POST("/:quizId/questions", lecturer, h.Quiz.UpsertQuestion)
		quizzes.DELETE("/:quizId/questions/:questionId", lecturer, h.Quiz.DeleteQuestion)
		quizzes.POST("/:quizId/submit", h.Quiz.Submit)
		quizzes.GET("/:quizId/results", lecturer, h.Quiz.Results)
	}

	feed := course.Group("/feed")
	{
		feed.GET("", h.Feed.List)
		feed.GET("/stream", h.Feed.Stream)
		feed.GET("/ws", h.WS.ServeFeed)
		feed.POST("", lecturer, h.Feed.Create)
		feed.POST("/events", lecturer, h.Feed.AutoEvent)
		feed.PUT("/:id", lecturer, h.Feed.Update)
		feed.DELETE("/:id", lecturer, h.Feed.Delete)
	}

	return router
}

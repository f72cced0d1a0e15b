package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emilythestrangee/quickbite/backend/internal/auth"
	"github.com/emilythestrangee/quickbite/backend/internal/handlers"
	"github.com/emilythestrangee/quickbite/backend/internal/middleware"
)

// HealthFunc reports dependency health for /health.
type HealthFunc func() map[string]string

type Server struct {
	handler     *handlers.Handler
	tokens      *auth.Tokens
	health      HealthFunc
	corsOrigins []string
	logger      *zap.Logger
}

type Options struct {
	Port        string
	CORSOrigins []string
	Health      HealthFunc
	Logger      *zap.Logger
}

// NewServer creates and configures a new server
func NewServer(handler *handlers.Handler, tokens *auth.Tokens, opts Options) *http.Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Port == "" {
		opts.Port = "8080"
	}

	s := &Server{
		handler:     handler,
		tokens:      tokens,
		health:      opts.Health,
		corsOrigins: opts.CORSOrigins,
		logger:      opts.Logger,
	}

	// WriteTimeout stays zero: the counters stream is long-lived.
	return &http.Server{
		Addr:              "0.0.0.0:" + opts.Port,
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.logger))

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		if s.health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		stats := s.health()
		if stats["status"] != "up" {
			c.JSON(http.StatusServiceUnavailable, stats)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", s.handler.Auth.Register)
		api.POST("/login", s.handler.Auth.Login)

		// Recipe routes (viewer attached when a token is sent)
		recipes := api.Group("/recipes")
		recipes.Use(middleware.OptionalAuth(s.tokens))
		{
			recipes.GET("", s.handler.Recipe.GetRecipes)
			recipes.GET("/top", s.handler.Recipe.TopRecipes)
			recipes.GET("/search", s.handler.Recipe.SearchRecipes)
			recipes.GET("/stream", s.handler.Stream.Counters)
			recipes.GET("/:id", s.handler.Recipe.GetRecipe)
			recipes.GET("/:id/feedback", s.handler.Feedback.GetFeedback)
			// Anonymous submissions reach the reconciler, which reports them
			// as unauthenticated without touching the store.
			recipes.POST("/:id/feedback", s.handler.Feedback.SubmitFeedback)
		}

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.tokens))
		{
			protected.GET("/me", s.handler.Auth.GetMe)
			protected.GET("/me/profile", s.handler.Profile.GetProfile)
		}
	}

	return r
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

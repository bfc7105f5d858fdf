package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"geotasks/api/internal/auth"
	"geotasks/api/internal/config"
	"geotasks/api/internal/handler"
	"geotasks/api/internal/middleware"
	"geotasks/api/internal/model"
	"geotasks/api/internal/service"
	"geotasks/api/internal/store"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Server represents the HTTP server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     *config.Config
	repo       store.Repository
	redis      *redis.Client
	nats       *nats.Conn
	limiter    middleware.RateLimiter
	events     service.Publisher
}

// NewServer creates a new server instance. redisClient and natsConn may be nil.
func NewServer(cfg *config.Config, repo store.Repository, redisClient *redis.Client, natsConn *nats.Conn) *Server {
	s := &Server{
		config: cfg,
		repo:   repo,
		redis:  redisClient,
		nats:   natsConn,
	}

	if redisClient != nil {
		s.limiter = middleware.NewRedisRateLimiter(redisClient)
	} else {
		s.limiter = middleware.NewLocalRateLimiter()
		log.Println("[Server] REDIS_URL not set, rate limits are per process")
	}

	if natsConn != nil {
		s.events = service.NewNATSPublisher(natsConn, cfg.NATSSubjectPrefix)
	} else {
		s.events = service.NopPublisher{}
	}

	return s
}

// SetRateLimiter replaces the limiter chosen by NewServer; call before Setup
func (s *Server) SetRateLimiter(limiter middleware.RateLimiter) {
	s.limiter = limiter
}

// Setup initializes routes and handlers
func (s *Server) Setup() {
	// Initialize services
	tokens := auth.NewTokenManager(s.config.JWTSecret, s.config.AccessTokenTTL)
	userService := service.NewUserService(s.repo, s.events)
	authService := service.NewAuthService(s.repo, tokens, userService)
	taskService := service.NewTaskService(s.repo, s.events)
	locationService := service.NewLocationService(s.repo, s.events)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	taskHandler := handler.NewTaskHandler(taskService)
	locationHandler := handler.NewLocationHandler(locationService)

	s.router = gin.Default()
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.CORS(s.config.FrontendURL))

	// 限流：IP类规则全局生效，用户类规则挂在认证之后的具体路由上
	if s.config.RateLimit.Enabled {
		ipLimits := middleware.NewRateLimitGroup(s.limiter, s.config.RateLimit.DefaultRule.ToMiddlewareConfig())
		for _, rule := range s.config.RateLimit.SpecificRules {
			if rule.Type != middleware.RateLimitByUser {
				ipLimits.AddSpecificConfig(rule.Path, rule.ToMiddlewareConfig())
			}
		}
		s.router.Use(ipLimits.Middleware())
	}

	// Swagger UI
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Public routes
	s.router.GET("/health", s.health)
	s.router.POST("/auth/login", authHandler.Login)
	s.router.POST("/auth/register_and_login", authHandler.RegisterAndLogin)
	s.router.POST("/users/", userHandler.Create)
	s.router.GET("/users/", userHandler.List)
	s.router.GET("/users/:id", userHandler.Get)

	// Reactivation
	reactivate := s.router.Group("/")
	if s.config.ReactivationPolicy == config.ReactivationAdmin {
		reactivate.Use(authHandler.AuthMiddleware(), middleware.RequireRole(model.RoleAdmin))
	}
	{
		reactivate.PATCH("/users/:id/activate", userHandler.Activate)
		reactivate.PATCH("/tasks/activate/:id", taskHandler.Activate)
	}

	// Protected routes
	api := s.router.Group("/")
	api.Use(authHandler.AuthMiddleware())
	handle := func(method, path string, h gin.HandlerFunc) {
		api.Handle(method, path, s.userLimit(path), h)
	}
	{
		// Auth
		handle(http.MethodPost, "/auth/refresh_token", authHandler.RefreshToken)

		// Users
		handle(http.MethodPut, "/users/:id", userHandler.Update)
		handle(http.MethodPatch, "/users/:id", userHandler.Patch)
		handle(http.MethodPatch, "/users/:id/deactivate", userHandler.Deactivate)
		handle(http.MethodDelete, "/users/:id", userHandler.Delete)

		// Tasks
		handle(http.MethodPost, "/tasks/", taskHandler.Create)
		handle(http.MethodGet, "/tasks/", taskHandler.List)
		handle(http.MethodGet, "/tasks/export", taskHandler.Export)
		handle(http.MethodGet, "/tasks/:id", taskHandler.Get)
		handle(http.MethodPatch, "/tasks/:id", taskHandler.Patch)
		handle(http.MethodPatch, "/tasks/done/:id", taskHandler.ToggleDone)
		handle(http.MethodPatch, "/tasks/deactivate/:id", taskHandler.Deactivate)
		handle(http.MethodDelete, "/tasks/:id", taskHandler.Delete)

		// Locations
		for _, path := range []string{"/locations/user", "/locations/user/:user_id"} {
			handle(http.MethodPost, path, locationHandler.CreateForUser)
			handle(http.MethodGet, path, locationHandler.GetForUser)
			handle(http.MethodPut, path, locationHandler.UpdateForUser)
			handle(http.MethodDelete, path, locationHandler.DeleteForUser)
		}
		handle(http.MethodPost, "/locations/task/:task_id", locationHandler.CreateForTask)
		handle(http.MethodGet, "/locations/task/:task_id", locationHandler.GetForTask)
		handle(http.MethodPut, "/locations/task/:task_id", locationHandler.UpdateForTask)
		handle(http.MethodDelete, "/locations/task/:task_id", locationHandler.DeleteForTask)
	}
}

// userLimit 返回路由的用户级限流；该路径的规则不是按用户计数时直接放行
func (s *Server) userLimit(path string) gin.HandlerFunc {
	rule := s.config.GetRateLimitRuleForPath(path)
	if !s.config.RateLimit.Enabled || rule.Type != middleware.RateLimitByUser {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.NewRateLimitMiddleware(s.limiter, rule.ToMiddlewareConfig()).Middleware()
}

// health reports database, Redis and NATS status
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	health := gin.H{"status": "ok", "database": "ok"}

	if err := s.repo.Ping(ctx); err != nil {
		log.Printf("[Server] Database health check failed: %v", err)
		health["database"] = "unavailable"
		health["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			health["redis"] = "unavailable"
		} else {
			health["redis"] = "ok"
		}
	} else {
		health["redis"] = "disabled"
	}

	if s.nats != nil {
		health["nats"] = s.nats.Status().String()
	} else {
		health["nats"] = "disabled"
	}

	c.JSON(status, health)
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("[Server] HTTP server listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// GetRouter returns the gin router for testing
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	log.Println("[Server] HTTP server stopped")
	return nil
}

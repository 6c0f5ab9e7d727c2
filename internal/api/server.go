package api

import (
	"context"
	"net/http"
	"time"

	"gatherhub/backend/internal/chat"
	"gatherhub/backend/internal/ws"
	"gatherhub/backend/pkg/config"
	apperrors "gatherhub/backend/pkg/errors"
	"gatherhub/backend/pkg/health"
	"gatherhub/backend/pkg/jwt"
	"gatherhub/backend/pkg/logger"
	"gatherhub/backend/pkg/middleware"
	"gatherhub/backend/shared/redis"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Server is the application context: every dependency is constructed once
// at startup and carried here by reference, with explicit teardown. There
// is no package-level mutable state.
type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	hub     *chat.Hub
	typing  *chat.Typing
	cache   *redis.Client
	checker *health.Checker
	engine  *gin.Engine
	httpSrv *http.Server
}

// Options carries the wired dependencies into the server
type Options struct {
	Config     *config.Config
	Logger     *logger.Logger
	Hub        *chat.Hub
	Typing     *chat.Typing
	WsServer   *ws.Server
	Auth       *AuthHandler
	History    *HistoryHandler
	Tokens     *jwt.Service
	Cache      *redis.Client
	Checker    *health.Checker
	EnableAuth bool
}

func NewServer(opts Options) *Server {
	engine := gin.New()
	engine.Use(apperrors.RecoveryWithLogger())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(requestLogger(opts.Logger))
	engine.Use(apperrors.ErrorHandler())

	limiter := middleware.NewRateLimiter(opts.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(opts.Config.Security.RateLimit),
		Burst:          opts.Config.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc:        func(c *gin.Context) string { return c.ClientIP() },
	})

	engine.GET("/health", opts.Checker.Handler())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/ws", opts.WsServer.Handle)

	apiGroup := engine.Group("/api")
	apiGroup.Use(limiter.Middleware())
	{
		if opts.EnableAuth {
			apiGroup.POST("/auth/login", opts.Auth.Login)
		}

		authed := apiGroup.Group("/chat")
		authed.Use(AuthMiddleware(opts.Tokens))
		{
			authed.GET("/:scopeType/:scopeId/messages", opts.History.Get)
		}
	}

	return &Server{
		cfg:     opts.Config,
		log:     opts.Logger,
		hub:     opts.Hub,
		typing:  opts.Typing,
		cache:   opts.Cache,
		checker: opts.Checker,
		engine:  engine,
		httpSrv: &http.Server{
			Addr:         ":" + opts.Config.Server.Port,
			Handler:      engine,
			ReadTimeout:  opts.Config.Server.Timeout,
			WriteTimeout: opts.Config.Server.Timeout,
		},
	}
}

// Engine exposes the router for tests
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP listener and blocks until it stops
func (s *Server) Run() error {
	s.checker.Start()
	s.log.Info("server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP listener, closes every chat session and
// releases shared resources
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)

	if s.typing != nil {
		s.typing.Stop()
	}
	s.hub.Shutdown()

	if s.cache != nil {
		if cerr := s.cache.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	s.log.Info("server stopped")
	return err
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.LogRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

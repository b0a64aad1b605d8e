// internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"calorie-chat/internal/config"
	"calorie-chat/internal/extract"
	"calorie-chat/internal/logger"
	"calorie-chat/internal/storage"
)

const Version = "1.0.0"

var serverInfo = protocol.Implementation{
	Name:    "calorie-chat",
	Version: Version,
}

type MealLogServer struct {
	httpServer *http.Server
	router     *gin.Engine
	storage    storage.Store
	extractor  *extract.Service
	config     *config.Config
	log        *logger.Logger
}

func NewMealLogServer(cfg *config.Config, store storage.Store, extractor *extract.Service, log *logger.Logger) (*MealLogServer, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extraction service is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &MealLogServer{
		storage:   store,
		extractor: extractor,
		config:    cfg,
		log:       log,
	}
	s.router = s.newRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *MealLogServer) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))
	r.Use(s.corsMiddleware())

	r.GET("/healthcheck", s.handleHealthCheck)

	api := r.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/saveMeal", s.handleSaveMeal)
		api.GET("/meals", s.handleGetMeals)
		api.PATCH("/meals", s.handleUpdateMeal)
		api.GET("/analytics", s.handleAnalytics)
	}

	r.GET("/mcp", s.handleServerInfo)
	r.POST("/mcp", gin.WrapF(s.handleMCP))
	return r
}

func (s *MealLogServer) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	origins := s.config.AllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

// Handler exposes the router, mainly for tests.
func (s *MealLogServer) Handler() http.Handler {
	return s.router
}

func (s *MealLogServer) Start(ctx context.Context) error {
	s.log.Info("starting meal log server", "addr", s.httpServer.Addr)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *MealLogServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.storage != nil {
		if cerr := s.storage.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

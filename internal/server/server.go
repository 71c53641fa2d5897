// ABOUTME: HTTP surface for askdocs built on gin
// ABOUTME: Router construction, request logging and graceful shutdown
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harper/askdocs/internal/core"
)

// MaxUploadBytes caps a multipart upload request
const MaxUploadBytes = 50 << 20

const shutdownTimeout = 10 * time.Second

// Server serves the HTTP API for one Service
type Server struct {
	service *core.Service
	logger  *slog.Logger
	router  *gin.Engine
}

// New creates a Server with all routes registered
func New(service *core.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service: service,
		logger:  logger.With("component", "http"),
	}
	s.router = s.routes()
	return s
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = MaxUploadBytes
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.health)
	router.GET("/stats", s.stats)
	router.POST("/chat", s.chat)
	router.POST("/documents", s.ingestDocuments)
	router.POST("/upload", s.upload)
	router.GET("/sessions/:id/history", s.sessionHistory)
	router.DELETE("/sessions/:id", s.clearSession)

	return router
}

// requestLogger logs one line per request at debug, or warn for 5xx
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start))
	}
}

// Run listens on addr until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

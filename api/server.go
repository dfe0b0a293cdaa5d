package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/poiesic/lorekeep"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/search"
	"github.com/poiesic/lorekeep/vectorindex"
)

// Service is the part of lorekeep.Engine the HTTP layer needs.
type Service interface {
	AddTextSource(ctx context.Context, tenantID, label, content string) (*core.KnowledgeSource, error)
	IngestPages(ctx context.Context, tenantID string, pages []core.Page) (*lorekeep.PagesResult, error)
	DeleteSource(ctx context.Context, tenantID, sourceID string) error
	ListSources(ctx context.Context, tenantID string) ([]core.SourceSummary, error)
	RetrieveContext(ctx context.Context, tenantID, question string) ([]string, error)
	Search(ctx context.Context, tenantID, question string, topK int, monitor search.SearchMonitor) ([]vectorindex.Match, error)
	PurgeTenant(ctx context.Context, tenantID string) (int, error)
}

var _ Service = (*lorekeep.Engine)(nil)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to a Service.
type Server struct {
	svc     Service
	router  *gin.Engine
	origins []string
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins restricts CORS to origins. Without it every origin is
// allowed.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// New creates a Server for svc.
func New(svc Service, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, ErrServiceRequired
	}
	s := &Server{svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")

	corsConfig := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.origins
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	tenant := r.Group("/v1/tenants/:tenant")
	tenant.GET("/sources", s.handleListSources)
	tenant.POST("/sources/text", s.handleAddText)
	tenant.POST("/sources/pages", s.handleIngestPages)
	tenant.DELETE("/sources/:id", s.handleDeleteSource)
	tenant.POST("/retrieve", s.handleRetrieve)
	tenant.POST("/search", s.handleSearch)
	tenant.DELETE("", s.handlePurgeTenant)

	s.router = r
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
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
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

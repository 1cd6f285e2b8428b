package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskmanager/internal/models"
	"taskmanager/internal/query"
	"taskmanager/internal/storage"
)

const requestIDHeader = "X-Request-Id"

// Server provides HTTP handlers for the task manager backend.
type Server struct {
	engine    *gin.Engine
	store     storage.Store
	logger    *slog.Logger
	staticDir string
	loc       *time.Location
	now       func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithLocation sets the zone that decides which calendar day "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs the HTTP server with routes and middleware configured.
func New(store storage.Store, logger *slog.Logger, staticDir string, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	srv := &Server{
		engine:    router,
		store:     store,
		logger:    logger,
		staticDir: staticDir,
		loc:       time.Local,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(srv)
	}

	router.Use(srv.requestLogger())
	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/stats", s.handleStats)

		tasks := api.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.GET("/today", s.handleScopedTasks(query.ScopeToday))
			tasks.GET("/overdue", s.handleScopedTasks(query.ScopeOverdue))
			tasks.POST("/bulk-delete", s.handleBulkDelete)
			tasks.GET("/:id", s.handleGetTask)
			tasks.PATCH("/:id", s.handleUpdateTask)
			tasks.PUT("/:id", s.handleUpdateTask)
			tasks.DELETE("/:id", s.handleDeleteTask)
		}

		categories := api.Group("/categories")
		{
			categories.GET("", s.handleListCategories)
			categories.GET("/:id", s.handleGetCategory)
			categories.GET("/:id/tasks", s.handleCategoryTasks)
		}
	}

	s.mountStatic()
}

// clock returns the current time in the configured zone.
func (s *Server) clock() time.Time {
	return s.now().In(s.loc)
}

// requestLogger tags every request with an id and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(c.Request.Context(), level, "request",
			slog.String("request_id", id),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

// handleHealth reports whether the store answers.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.respondError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// statusFor maps store errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status matching err.
func (s *Server) fail(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err)
}

// respondError logs the error and returns a JSON payload. Backend failures
// are marked retryable.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	attrs := []any{
		slog.String("path", c.FullPath()),
		slog.String("request_id", c.GetString("request_id")),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Debug("request rejected", attrs...)
	}

	body := gin.H{"error": err.Error()}
	if status == http.StatusBadGateway || status == http.StatusServiceUnavailable {
		body["retryable"] = true
	}
	c.JSON(status, body)
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

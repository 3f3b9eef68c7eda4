// Package http provides the procrag HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/procrag/internal/answer"
	"github.com/fyrsmithlabs/procrag/internal/catalog"
	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/retrieval"
)

// Searcher answers filtered similarity queries. *retrieval.Gateway
// satisfies it.
type Searcher interface {
	Query(ctx context.Context, text string, filter retrieval.Filter, topK int) ([]document.StructuredDocument, error)
}

// Catalog reads ingested document entries. *catalog.Catalog satisfies it.
type Catalog interface {
	List() ([]catalog.Entry, error)
	Get(sourceID string) (catalog.Entry, error)
}

// Server provides HTTP endpoints for procrag.
type Server struct {
	echo     *echo.Echo
	searcher Searcher
	catalog  Catalog
	metrics  *Metrics
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string

	// DefaultTopK applies when a query omits top_k.
	DefaultTopK int
	// MaxTopK caps top_k.
	MaxTopK int
}

// DefaultConfig returns the default listen address and query limits.
func DefaultConfig() *Config {
	return &Config{
		Host:        "localhost",
		Port:        9464,
		DefaultTopK: 3,
		MaxTopK:     50,
	}
}

// NewServer creates a new HTTP server. /health and /metrics are always
// served; the query route needs searcher and the document routes need cat.
func NewServer(logger *zap.Logger, cfg *Config, searcher Searcher, cat Catalog) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultConfig().DefaultTopK
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = DefaultConfig().MaxTopK
	}

	metrics := NewMetrics(logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		searcher: searcher,
		catalog:  cat,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	if s.searcher != nil {
		v1.POST("/query", s.handleQuery)
	}
	if s.catalog != nil {
		v1.GET("/status", s.handleStatus)
		v1.GET("/documents", s.handleListDocuments)
		v1.GET("/documents/:id", s.handleGetDocument)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	filter, err := retrieval.ParseFilter(req.Steps, req.Categories)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.config.DefaultTopK
	}
	if topK > s.config.MaxTopK {
		topK = s.config.MaxTopK
	}

	docs, err := s.searcher.Query(c.Request().Context(), req.Query, filter, topK)
	if err != nil {
		return s.queryError(err)
	}
	s.metrics.RecordQuery(c.Request().Context(), len(docs))

	resp := QueryResponse{
		Query:  req.Query,
		TopK:   topK,
		Count:  len(docs),
		Units:  make([]UnitRef, 0, len(docs)),
		Answer: answer.Aggregate(docs),
	}
	for _, d := range docs {
		resp.Units = append(resp.Units, UnitRef{
			ID:       d.ID(),
			SourceID: d.Unit.SourceID,
			Index:    d.Unit.Index,
			Category: string(d.Category),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) queryError(err error) error {
	switch {
	case errors.Is(err, retrieval.ErrInvalidTopK):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("query timed out", zap.Error(err))
		return echo.NewHTTPError(http.StatusGatewayTimeout, "retrieval timed out")
	default:
		s.logger.Error("query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "retrieval failed")
	}
}

func (s *Server) handleStatus(c echo.Context) error {
	entries, err := s.catalog.List()
	if err != nil {
		s.logger.Error("listing catalog failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "catalog unavailable")
	}
	resp := StatusResponse{Status: "ok", Version: s.config.Version, Documents: len(entries)}
	for _, e := range entries {
		resp.Units += e.Units
	}
	return c.JSON(http.StatusOK, resp)
}

// handleListDocuments lists catalog entries, optionally filtered by
// ?label=key or ?label=key=value.
func (s *Server) handleListDocuments(c echo.Context) error {
	entries, err := s.catalog.List()
	if err != nil {
		s.logger.Error("listing catalog failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "catalog unavailable")
	}

	key, value, byValue := strings.Cut(c.QueryParam("label"), "=")
	docs := make([]catalog.Entry, 0, len(entries))
	for _, e := range entries {
		if key != "" {
			v, ok := e.Labels[key]
			if !ok || (byValue && v != value) {
				continue
			}
		}
		docs = append(docs, e)
	}
	return c.JSON(http.StatusOK, DocumentsResponse{Documents: docs, Count: len(docs)})
}

func (s *Server) handleGetDocument(c echo.Context) error {
	entry, err := s.catalog.Get(c.Param("id"))
	if errors.Is(err, catalog.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	if err != nil {
		s.logger.Error("reading catalog failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "catalog unavailable")
	}
	return c.JSON(http.StatusOK, entry)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.Addr()))
	return s.echo.Start(s.Addr())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Run serves until ctx is done, then shuts down within timeout.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

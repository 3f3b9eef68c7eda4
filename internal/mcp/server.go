package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/procrag/internal/catalog"
	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/loader"
	"github.com/fyrsmithlabs/procrag/internal/retrieval"
)

// Searcher answers filtered similarity queries. *retrieval.Gateway
// satisfies it.
type Searcher interface {
	Query(ctx context.Context, text string, filter retrieval.Filter, topK int) ([]document.StructuredDocument, error)
}

// Lister enumerates ingested documents. *catalog.Catalog satisfies it.
type Lister interface {
	List() ([]catalog.Entry, error)
}

// Server exposes procedure retrieval as MCP tools.
type Server struct {
	mcp      *mcp.Server
	searcher Searcher
	builder  *document.Builder
	lister   Lister
	metrics  *Metrics
	config   Config
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "procrag")
	Name string

	// Version is the server version (default: "1.0.0")
	Version string

	// DefaultTopK is used when a search call omits top_k (default: 3)
	DefaultTopK int

	// MaxTopK caps top_k on search calls (default: 50)
	MaxTopK int

	// MaxFileSize bounds files read by procedure_extract (default: loader.MaxFileSize)
	MaxFileSize int64

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:        "procrag",
		Version:     "1.0.0",
		DefaultTopK: 3,
		MaxTopK:     50,
		MaxFileSize: loader.MaxFileSize,
		Logger:      zap.NewNop(),
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = d.DefaultTopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = d.MaxTopK
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = d.MaxFileSize
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
}

// NewServer creates an MCP server. searcher and builder are required;
// lister is optional and document_list is only registered when set.
func NewServer(cfg *Config, searcher Searcher, builder *document.Builder, lister Lister) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.applyDefaults()

	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if builder == nil {
		return nil, errors.New("document builder is required")
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    c.Name,
				Version: c.Version,
			},
			nil,
		),
		searcher: searcher,
		builder:  builder,
		lister:   lister,
		metrics:  NewMetrics(c.Logger),
		config:   c,
		logger:   c.Logger,
	}

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session over t. Used for in-process clients.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

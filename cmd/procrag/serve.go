package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/fyrsmithlabs/procrag/internal/http"
	mcpserver "github.com/fyrsmithlabs/procrag/internal/mcp"
)

const (
	defaultHTTPAddr = "localhost:9464"
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query and catalog HTTP API",
		Long: `Serve POST /api/v1/query, the document catalog under /api/v1/documents,
/api/v1/status, /health and Prometheus /metrics until interrupted.

Example:
  procrag serve --addr 0.0.0.0:9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				srv, err := a.httpServer(addr)
				if err != nil {
					return err
				}
				return srv.Run(a.ctx, shutdownTimeout)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultHTTPAddr, "listen address (host:port)")
	return cmd
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve procedure tools to an MCP client over stdio",
		Long: `Run an MCP server on stdin/stdout exposing procedure_search,
procedure_extract and document_list. Logs go to stderr.

Example client entry:
  {"command": "procrag", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				gw, err := a.gateway()
				if err != nil {
					return err
				}
				cat, err := a.openCatalog()
				if err != nil {
					return err
				}
				srv, err := mcpserver.NewServer(&mcpserver.Config{
					Name:        "procrag",
					Version:     version,
					DefaultTopK: a.cfg.Retrieval.TopK,
					MaxFileSize: a.maxFileSize(),
					Logger:      a.zap().Named("mcp"),
				}, gw, a.builder, cat)
				if err != nil {
					return err
				}
				return ignoreCanceled(srv.Run(a.ctx))
			})
		},
	}
}

// httpServer builds the HTTP API on addr backed by the gateway and catalog.
func (a *app) httpServer(addr string) (*httpapi.Server, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in %q: %w", addr, err)
	}

	gw, err := a.gateway()
	if err != nil {
		return nil, err
	}
	cat, err := a.openCatalog()
	if err != nil {
		return nil, err
	}
	return httpapi.NewServer(a.zap().Named("http"), &httpapi.Config{
		Host:        host,
		Port:        port,
		Version:     version,
		DefaultTopK: a.cfg.Retrieval.TopK,
	}, gw, cat)
}

// runGroup runs fns until all return or one fails. A failure cancels
// the others. Cancellation itself is not reported as an error.
func runGroup(ctx context.Context, fns ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error {
			return ignoreCanceled(fn(gctx))
		})
	}
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

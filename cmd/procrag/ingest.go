package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/procrag/internal/catalog"
	"github.com/fyrsmithlabs/procrag/internal/ingest"
	"github.com/fyrsmithlabs/procrag/internal/logging"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "ingest PATH...",
		Short: "Index manuals into the vector store",
		Long: `Load, classify and index files or directories. Directories are walked
recursively and unsupported files are skipped. A file whose content is
unchanged since its last ingestion is skipped unless --force is given.

Examples:
  procrag ingest ./manuals
  procrag ingest pump.pdf valve.docx --force`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				p, err := a.pipeline(force)
				if err != nil {
					return err
				}
				report := p.Ingest(a.ctx, args...)
				if err := a.print(report); err != nil {
					return err
				}
				if report.Failed > 0 {
					return fmt.Errorf("%d of %d file(s) failed: %w",
						report.Failed, len(report.Files), errors.Join(report.Errors()...))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-index files whose content is unchanged")
	return cmd
}

// removeResult is the output of procrag remove.
type removeResult struct {
	Removed []string `json:"removed" yaml:"removed"`
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove SOURCE_ID...",
		Short: "Delete documents from the index and catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				p, err := a.pipeline(false)
				if err != nil {
					return err
				}
				res := removeResult{Removed: make([]string, 0, len(args))}
				for _, id := range args {
					if err := p.Remove(a.ctx, id); err != nil {
						if errors.Is(err, catalog.ErrNotFound) {
							return fmt.Errorf("document %q not found", id)
						}
						return err
					}
					res.Removed = append(res.Removed, id)
				}
				return a.print(res)
			})
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Keep a directory of manuals indexed",
		Long: `Ingest every supported file under DIR, then re-ingest files as they are
created or changed and remove the documents of deleted files. Runs until
interrupted.

With --metrics-addr, the HTTP API (including /metrics) is served for the
lifetime of the watcher.

Examples:
  procrag watch ./manuals
  procrag watch ./manuals --metrics-addr localhost:9464`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				p, err := a.pipeline(false)
				if err != nil {
					return err
				}
				w, err := ingest.NewWatcher(p, args[0], a.cfg.Ingest.Debounce.Duration(), a.zap().Named("watch"))
				if err != nil {
					return err
				}
				w.OnReport = func(r ingest.Report) {
					if len(r.Files) == 0 {
						return
					}
					a.logger.Info(a.ctx, "ingestion finished",
						zap.Int("ingested", r.Ingested),
						zap.Int("skipped", r.Skipped),
						zap.Int("failed", r.Failed),
						zap.Int("units", r.Units),
						zap.Duration("duration", r.Duration),
					)
					for _, f := range r.Files {
						if f.Err != nil {
							ctx := logging.WithSourceID(a.ctx, f.SourceID)
							a.logger.Warn(ctx, "ingestion failed", zap.String("path", f.Path), zap.Error(f.Err))
						}
					}
				}

				a.logger.Info(a.ctx, "watching", zap.String("dir", w.Dir()))
				if metricsAddr == "" {
					return ignoreCanceled(w.Run(a.ctx))
				}
				srv, err := a.httpServer(metricsAddr)
				if err != nil {
					return err
				}
				return runGroup(a.ctx,
					w.Run,
					func(ctx context.Context) error { return srv.Run(ctx, shutdownTimeout) },
				)
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve the HTTP API and /metrics on this host:port")
	return cmd
}

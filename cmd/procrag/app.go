package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/procrag/internal/catalog"
	"github.com/fyrsmithlabs/procrag/internal/config"
	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/embeddings"
	"github.com/fyrsmithlabs/procrag/internal/extraction"
	"github.com/fyrsmithlabs/procrag/internal/ingest"
	"github.com/fyrsmithlabs/procrag/internal/logging"
	"github.com/fyrsmithlabs/procrag/internal/retrieval"
	"github.com/fyrsmithlabs/procrag/internal/telemetry"
	"github.com/fyrsmithlabs/procrag/internal/vectorstore"
)

// newProvider builds the embedding provider. Tests swap in a
// deterministic one.
var newProvider = embeddings.NewProvider

// app holds what one command invocation needs. The catalog and the
// vector index are opened on first use; Close releases everything in
// reverse order.
type app struct {
	ctx       context.Context
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	builder   *document.Builder
	out       io.Writer
	format    string

	catalog *catalog.Catalog
	index   *retrieval.VectorIndex
	closers []func() error
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := loadDotEnv(opts.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	logCfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	var logProvider log.LoggerProvider
	if cfg.Logging.OTEL {
		logProvider = global.GetLoggerProvider()
	}
	logger, err := logging.NewLogger(logCfg, logProvider, logging.WithWriter(cmd.ErrOrStderr()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}

	builder, err := newBuilder(cfg.Extraction)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, err
	}

	a := &app{
		ctx:       ctx,
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
		builder:   builder,
		out:       cmd.OutOrStdout(),
		format:    opts.output,
	}
	return a, nil
}

// loadDotEnv loads path into the environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// newBuilder compiles the configured rule table, or the built-in one.
func newBuilder(ec config.ExtractionConfig) (*document.Builder, error) {
	exCfg := extraction.DefaultConfig()
	if ec.SnippetRadius > 0 {
		exCfg.SnippetRadius = ec.SnippetRadius
	}
	if ec.RulesFile != "" {
		path, err := config.ExpandPath(ec.RulesFile)
		if err != nil {
			return nil, err
		}
		rules, err := extraction.LoadRules(path)
		if err != nil {
			return nil, err
		}
		exCfg.Rules = rules
	}
	ex, err := extraction.NewExtractor(exCfg)
	if err != nil {
		return nil, fmt.Errorf("compiling extraction rules: %w", err)
	}
	return document.NewBuilder(ex), nil
}

func (a *app) zap() *zap.Logger {
	return a.logger.Underlying()
}

func (a *app) print(v any) error {
	return printResult(a.out, a.format, v)
}

// openCatalog opens the bbolt catalog once.
func (a *app) openCatalog() (*catalog.Catalog, error) {
	if a.catalog != nil {
		return a.catalog, nil
	}
	path, err := config.ExpandPath(a.cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return nil, err
	}
	a.catalog = cat
	a.closers = append(a.closers, cat.Close)
	return cat, nil
}

// openIndex builds the embedding provider and vector store once. The
// store's vector size follows the provider's dimension.
func (a *app) openIndex() (*retrieval.VectorIndex, error) {
	if a.index != nil {
		return a.index, nil
	}

	pcfg, err := embeddings.FromConfig(a.cfg.Embeddings)
	if err != nil {
		return nil, err
	}
	provider, err := newProvider(pcfg, a.zap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embeddings: %w", err)
	}
	a.closers = append(a.closers, provider.Close)

	storeCfg := *a.cfg
	storeCfg.Chromem.VectorSize = provider.Dimension()
	storeCfg.Qdrant.VectorSize = uint64(provider.Dimension())

	store, err := vectorstore.NewStore(&storeCfg, provider, a.zap(), retrieval.IndexedFields...)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	a.index = retrieval.NewVectorIndex(store, a.zap())
	return a.index, nil
}

func (a *app) gateway() (*retrieval.Gateway, error) {
	index, err := a.openIndex()
	if err != nil {
		return nil, err
	}
	rc := a.cfg.Retrieval
	return retrieval.NewGateway(index, retrieval.Config{
		OverFetch:    rc.OverFetch,
		MaxDeepening: rc.MaxDeepening,
		Timeout:      rc.Timeout.Duration(),
	}, a.zap().Named("retrieval")), nil
}

func (a *app) pipeline(force bool) (*ingest.Pipeline, error) {
	index, err := a.openIndex()
	if err != nil {
		return nil, err
	}
	cat, err := a.openCatalog()
	if err != nil {
		return nil, err
	}
	ic := a.cfg.Ingest
	return ingest.NewPipeline(a.builder, index, cat, ingest.Config{
		MaxWorkers:  ic.MaxWorkers,
		BatchSize:   ic.BatchSize,
		MaxFileSize: a.maxFileSize(),
		Force:       force,
	}, a.zap().Named("ingest")), nil
}

func (a *app) maxFileSize() int64 {
	return a.cfg.Ingest.MaxFileSizeMB << 20
}

// Close releases opened components, flushes telemetry and syncs the logger.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.telemetry.Shutdown(context.Background()); err != nil {
		errs = append(errs, err)
	}
	_ = a.logger.Sync() // Best-effort sync on exit
	return errors.Join(errs...)
}

// withApp builds the app for cmd, runs fn and closes the app. A close
// error is reported only when fn succeeded.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(*app) error) (err error) {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/procrag/internal/catalog"
	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/loader"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxWorkers = 3
	DefaultBatchSize  = 64
)

// Index is the part of the retrieval index the pipeline writes to.
type Index interface {
	Add(ctx context.Context, docs []document.StructuredDocument) error
	RemoveSource(ctx context.Context, sourceID string) error
}

// Config tunes the pipeline.
type Config struct {
	// MaxWorkers bounds files processed concurrently. Default: 3
	MaxWorkers int

	// BatchSize bounds units per index call. Default: 64
	BatchSize int

	// MaxFileSize rejects larger files. Default: loader.MaxFileSize
	MaxFileSize int64

	// Force re-ingests files whose content hash is unchanged.
	Force bool
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = loader.MaxFileSize
	}
}

// Pipeline ingests files into an Index and records them in a Catalog.
type Pipeline struct {
	builder *document.Builder
	index   Index
	catalog *catalog.Catalog
	config  Config
	logger  *zap.Logger
	now     func() time.Time

	// sources serializes work on one source ID.
	sources sync.Map
}

// NewPipeline creates a pipeline.
func NewPipeline(builder *document.Builder, index Index, cat *catalog.Catalog, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Pipeline{
		builder: builder,
		index:   index,
		catalog: cat,
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Ingest processes paths concurrently. Directories are walked for
// supported files. A failing file never stops the others; its cause is in
// the Report. Only a canceled ctx cuts the run short.
func (p *Pipeline) Ingest(ctx context.Context, paths ...string) Report {
	start := p.now()
	files, expandErrs := expand(paths)

	report := Report{Files: make([]FileResult, len(files))}
	g := new(errgroup.Group)
	g.SetLimit(p.config.MaxWorkers)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.Files[i] = failed(path, "", err)
				return nil
			}
			report.Files[i] = p.ingestFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	report.Files = append(report.Files, expandErrs...)
	report.tally()
	report.Duration = p.now().Sub(start)

	p.logger.Info("ingestion finished",
		zap.Int("files", len(report.Files)),
		zap.Int("ingested", report.Ingested),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("units", report.Units),
		zap.Duration("duration", report.Duration),
	)
	return report
}

func (p *Pipeline) ingestFile(ctx context.Context, path string) (res FileResult) {
	ctx, span := otel.Tracer("procrag.ingest").Start(ctx, "Pipeline.ingestFile")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	start := time.Now()
	defer func() {
		FileDuration.Observe(time.Since(start).Seconds())
		FilesTotal.WithLabelValues(string(res.Status)).Inc()
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Error)
			p.logger.Warn("ingestion failed", zap.String("path", path), zap.Error(res.Err))
			return
		}
		span.SetStatus(codes.Ok, string(res.Status))
	}()

	sourceID := loader.SourceID(path)
	unlock := p.lockSource(sourceID)
	defer unlock()

	l, err := loader.ForFile(path)
	if err != nil {
		return failed(path, sourceID, &loader.LoadError{Path: path, Err: err})
	}
	if _, err := loader.Validate(path, p.config.MaxFileSize); err != nil {
		return failed(path, sourceID, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return failed(path, sourceID, &loader.LoadError{Path: path, Err: err})
	}
	hash := contentHash(data)

	prev, err := p.catalog.Get(sourceID)
	existed := err == nil
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return failed(path, sourceID, err)
	}
	if existed && prev.ContentHash == hash && !p.config.Force {
		p.logger.Debug("unchanged, skipping", zap.String("source_id", sourceID))
		return FileResult{Path: path, SourceID: sourceID, Status: StatusSkipped, Units: prev.Units}
	}
	if existed && prev.Path != "" && prev.Path != path {
		p.logger.Warn("source id reused by a different path",
			zap.String("source_id", sourceID),
			zap.String("previous_path", prev.Path),
			zap.String("path", path),
		)
	}

	units, err := l.Load(ctx, bytes.NewReader(data), sourceID)
	if err != nil {
		return failed(path, sourceID, &loader.LoadError{Path: path, Err: err})
	}

	docs, err := p.builder.BuildAll(units)
	if err != nil {
		return failed(path, sourceID, err)
	}

	if existed {
		if err := p.index.RemoveSource(ctx, sourceID); err != nil {
			return failed(path, sourceID, err)
		}
	}
	for i := 0; i < len(docs); i += p.config.BatchSize {
		end := min(i+p.config.BatchSize, len(docs))
		if err := p.index.Add(ctx, docs[i:end]); err != nil {
			return failed(path, sourceID, err)
		}
	}

	categories := map[string]int{}
	for _, d := range docs {
		categories[string(d.Category)]++
		UnitsTotal.WithLabelValues(string(d.Category)).Inc()
	}

	entry := catalog.Entry{
		SourceID:    sourceID,
		Path:        path,
		Format:      strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		ContentHash: hash,
		Units:       len(docs),
		Categories:  categories,
	}
	if pl, ok := l.(*loader.PDFLoader); ok {
		entry.Pages = pl.Pages
	}
	if err := p.catalog.Put(entry); err != nil {
		return failed(path, sourceID, err)
	}

	span.SetAttributes(attribute.String("source_id", sourceID), attribute.Int("units", len(docs)))
	p.logger.Info("ingested",
		zap.String("source_id", sourceID),
		zap.Int("units", len(docs)),
		zap.Bool("replaced", existed),
	)
	return FileResult{
		Path:       path,
		SourceID:   sourceID,
		Status:     StatusIngested,
		Units:      len(docs),
		Categories: categories,
		Replaced:   existed,
	}
}

// Remove deletes a document's units from the index and its catalog entry.
func (p *Pipeline) Remove(ctx context.Context, sourceID string) error {
	unlock := p.lockSource(sourceID)
	defer unlock()

	if _, err := p.catalog.Get(sourceID); err != nil {
		return err
	}
	if err := p.index.RemoveSource(ctx, sourceID); err != nil {
		return err
	}
	if err := p.catalog.Delete(sourceID); err != nil {
		return err
	}
	p.logger.Info("removed", zap.String("source_id", sourceID))
	return nil
}

func (p *Pipeline) lockSource(sourceID string) func() {
	mu, _ := p.sources.LoadOrStore(sourceID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func failed(path, sourceID string, err error) FileResult {
	return FileResult{Path: path, SourceID: sourceID, Status: StatusFailed, Error: err.Error(), Err: err}
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// expand resolves paths to absolute file paths. Directories contribute
// their supported files in lexical order; explicit files are kept even
// when unsupported so the failure is reported. Paths that cannot be
// resolved come back as failed results.
func expand(paths []string) ([]string, []FileResult) {
	var (
		files []string
		errs  []FileResult
		seen  = map[string]bool{}
	)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			errs = append(errs, failed(path, "", err))
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			errs = append(errs, failed(abs, "", &loader.LoadError{Path: abs, Err: err}))
			continue
		}
		if !info.IsDir() {
			add(abs)
			continue
		}

		var found []string
		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != abs && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if loader.IsSupported(p) && !strings.HasPrefix(d.Name(), ".") {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, failed(abs, "", fmt.Errorf("walking %s: %w", abs, err)))
			continue
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return files, errs
}

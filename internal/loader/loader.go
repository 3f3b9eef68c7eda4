// Package loader turns procedure manuals on disk into ordered text units.
//
// Each supported format has a Loader. Loaders only split and decode; all
// pattern extraction happens downstream on the units they return.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/procrag/internal/document"
)

// MaxFileSize is the default upper bound on input files (100 MiB).
const MaxFileSize int64 = 100 << 20

var (
	// ErrUnsupportedFormat indicates a file extension with no Loader.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrFileTooLarge indicates a file above the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile indicates a zero-byte file.
	ErrEmptyFile = errors.New("file is empty")

	// ErrNoText indicates a readable file with no extractable text.
	ErrNoText = errors.New("no extractable text")

	// ErrUndecodable indicates text that is valid in none of the supported encodings.
	ErrUndecodable = errors.New("undecodable text")

	// ErrEncrypted indicates a password-protected document.
	ErrEncrypted = errors.New("encrypted document")
)

// LoadError reports a failure to load one file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader splits one document into ordered text units.
type Loader interface {
	// Load reads the document from r. Unit indexes start at 0 and follow
	// document order.
	Load(ctx context.Context, r io.Reader, sourceID string) ([]document.TextUnit, error)
}

var loaders = map[string]func() Loader{
	".txt":      func() Loader { return &TextLoader{} },
	".text":     func() Loader { return &TextLoader{} },
	".md":       func() Loader { return &MarkdownLoader{} },
	".markdown": func() Loader { return &MarkdownLoader{} },
	".pdf":      func() Loader { return &PDFLoader{} },
	".docx":     func() Loader { return &DOCXLoader{} },
}

// ForFile returns the Loader for path's extension.
func ForFile(path string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	newLoader, ok := loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext,
			strings.Join(SupportedExtensions(), ", "))
	}
	return newLoader(), nil
}

// IsSupported reports whether path has a Loader.
func IsSupported(path string) bool {
	_, ok := loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SupportedExtensions lists the handled extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(loaders))
	for ext := range loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// SourceID derives the default source ID for path: its base name.
func SourceID(path string) string {
	return filepath.Base(path)
}

// Validate checks that path is a non-empty regular file no larger than
// maxSize. A maxSize of 0 means MaxFileSize.
func Validate(path string, maxSize int64) (os.FileInfo, error) {
	if maxSize <= 0 {
		maxSize = MaxFileSize
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("not a regular file")}
	}
	if info.Size() == 0 {
		return nil, &LoadError{Path: path, Err: ErrEmptyFile}
	}
	if info.Size() > maxSize {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %.1f MiB (limit %.0f MiB)",
			ErrFileTooLarge, float64(info.Size())/(1<<20), float64(maxSize)/(1<<20))}
	}
	return info, nil
}

// LoadFile validates and loads path. Every error is a *LoadError.
func LoadFile(ctx context.Context, path, sourceID string, maxSize int64) ([]document.TextUnit, error) {
	l, err := ForFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if _, err := Validate(path, maxSize); err != nil {
		return nil, err
	}
	if sourceID == "" {
		sourceID = SourceID(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	units, err := l.Load(ctx, f, sourceID)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return units, nil
}

// readLimit bounds what a Loader reads from its io.Reader.
var readLimit = MaxFileSize

// readAll reads r fully, failing once more than readLimit bytes arrive.
func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, readLimit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > readLimit {
		return nil, ErrFileTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	return data, nil
}

// units numbers non-blank texts in order. Returns ErrNoText when none remain.
func units(sourceID string, texts []string) ([]document.TextUnit, error) {
	out := make([]document.TextUnit, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, document.NewTextUnit(sourceID, len(out), t))
	}
	if len(out) == 0 {
		return nil, ErrNoText
	}
	return out, nil
}

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the procrag config dir.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "")

	dir := filepath.Join(home, ".config", "procrag")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "procedures", cfg.Chromem.Collection)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Retrieval.OverFetch)
	assert.Equal(t, 1, cfg.Retrieval.MaxDeepening)
	assert.Equal(t, 10*time.Second, cfg.Retrieval.Timeout.Duration())
	assert.Equal(t, 3, cfg.Ingest.MaxWorkers)
	assert.Equal(t, 64, cfg.Ingest.BatchSize)
	assert.Equal(t, 40, cfg.Extraction.SnippetRadius)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `
vectorstore:
  provider: qdrant
qdrant:
  host: qdrant.internal
  port: 6334
embeddings:
  provider: openai
  api_key: sk-file
retrieval:
  top_k: 5
  timeout: 3s
ingest:
  max_workers: 8
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, "sk-file", cfg.Embeddings.APIKey.Value())
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 3*time.Second, cfg.Retrieval.Timeout.Duration())
	assert.Equal(t, 8, cfg.Ingest.MaxWorkers)
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "retrieval:\n  top_k: 5\n", 0600)

	t.Setenv("PROCRAG_RETRIEVAL_TOP_K", "7")
	t.Setenv("PROCRAG_INGEST_BATCH_SIZE", "16")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, 16, cfg.Ingest.BatchSize)
}

func TestLoadWithFile_OpenAIKeyFallback(t *testing.T) {
	setupTestHome(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Embeddings.APIKey.Value())
	assert.Equal(t, "[REDACTED]", cfg.Embeddings.APIKey.String())
}

func TestLoadWithFile_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, dir string) string
		wantErr string
	}{
		{
			name: "outside allowed directories",
			setup: func(t *testing.T, _ string) string {
				return filepath.Join(t.TempDir(), "config.yaml")
			},
			wantErr: "config path validation failed",
		},
		{
			name: "sibling directory with shared prefix",
			setup: func(t *testing.T, dir string) string {
				evil := dir + "-evil"
				require.NoError(t, os.MkdirAll(evil, 0700))
				return filepath.Join(evil, "config.yaml")
			},
			wantErr: "config path validation failed",
		},
		{
			name: "oversized file",
			setup: func(t *testing.T, dir string) string {
				return writeConfig(t, dir, "# "+strings.Repeat("x", maxConfigFileSize), 0600)
			},
			wantErr: "too large",
		},
		{
			name: "unknown provider",
			setup: func(t *testing.T, dir string) string {
				return writeConfig(t, dir, "vectorstore:\n  provider: pinecone\n", 0600)
			},
			wantErr: "unknown vectorstore provider",
		},
		{
			name: "negative top_k",
			setup: func(t *testing.T, dir string) string {
				return writeConfig(t, dir, "retrieval:\n  top_k: -1\n", 0600)
			},
			wantErr: "retrieval.top_k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupTestHome(t)
			path := tt.setup(t, dir)

			_, err := LoadWithFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "retrieval:\n  top_k: 5\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"PROCRAG_RETRIEVAL_TOP_K":    "retrieval.top_k",
		"PROCRAG_QDRANT_HOST":        "qdrant.host",
		"PROCRAG_EMBEDDINGS_API_KEY": "embeddings.api_key",
		"PROCRAG_VERBOSE":            "verbose",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "procrag", "config.yaml"), path)
}

func TestLoadWithFile_SymlinkOutsideConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := setupTestHome(t)
	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("retrieval:\n  top_k: 5\n"), 0600))
	link := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.Symlink(outside, link))

	_, err := LoadWithFile(link)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 15s
storage:
  database_path: "test.db"
  vector_backend: memory
embedding:
  provider: hash
  dimensions: 64
chunking:
  max_tokens: 128
  overlap: 16
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Errorf("request_timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Storage.VectorBackend != VectorBackendMemory {
		t.Errorf("vector_backend = %s", cfg.Storage.VectorBackend)
	}
	if cfg.Embedding.Dimensions != 64 {
		t.Errorf("dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.Chunking.SnapTolerance != 128/5 {
		t.Errorf("snap tolerance should derive from max_tokens, got %d", cfg.Chunking.SnapTolerance)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.Provider != ProviderHash || cfg.Search.Metric != MetricCosine {
		t.Errorf("defaults not applied: %+v", cfg.Embedding)
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("database path should be absolute, got %s", cfg.Storage.DatabasePath)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("LITINDEX_SERVER__PORT", "9100")
	t.Setenv("LITINDEX_EMBEDDING__PROVIDER", "hash")
	t.Setenv("LITINDEX_DEBUG", "true")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want env override 9100", cfg.Server.Port)
	}
	if !cfg.Debug {
		t.Error("debug should be set from the environment")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/catalog.db"
  vector_path: "./data/vectors"
watch:
  directories: ["./inbox"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "db", "catalog.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "vectors"); cfg.Storage.VectorPath != want {
		t.Errorf("vector_path = %s, want %s", cfg.Storage.VectorPath, want)
	}
	if len(cfg.Watch.Directories) != 1 || cfg.Watch.Directories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("watch directories = %v", cfg.Watch.Directories)
	}
	if !cfg.Watch.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, content, wantErr string
	}{
		{"provider", "embedding:\n  provider: word2vec\n", "embedding provider"},
		{"backend", "storage:\n  vector_backend: faiss\n", "vector backend"},
		{"metric", "search:\n  metric: euclidean\n", "metric"},
		{"overlap", "chunking:\n  max_tokens: 10\n  overlap: 10\n", "overlap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults: %+v", cfg.Server)
	}
	if cfg.Search.DefaultMaxArticles != 3 || cfg.Search.DefaultMaxChunksPerArticle != 5 {
		t.Errorf("search defaults: %+v", cfg.Search)
	}
	if cfg.Search.OverFetchFactor != 4 || cfg.Search.MinOverFetch != 50 {
		t.Errorf("over-fetch defaults: %+v", cfg.Search)
	}
	if cfg.Chunking.MaxTokens != 256 || cfg.Chunking.Overlap != 32 {
		t.Errorf("chunking defaults: %+v", cfg.Chunking)
	}
	if len(cfg.Chunking.UnwantedPassages) != len(DefaultUnwantedPassages) {
		t.Errorf("unwanted passages: %v", cfg.Chunking.UnwantedPassages)
	}
	if cfg.Indexing.Extensions[0] != ".json" {
		t.Errorf("extensions: %v", cfg.Indexing.Extensions)
	}
	if cfg.Watch.Recursive != nil {
		t.Error("recursive should stay unset without directories")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Server.Port = 9090
	cfg.Storage.DatabasePath = "/tmp/catalog.db"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Storage.DatabasePath != "/tmp/catalog.db" {
		t.Errorf("loaded database path: got %s", loaded.Storage.DatabasePath)
	}
	if loaded.Retry.InitialBackoff != 200*time.Millisecond {
		t.Errorf("durations should round trip, got %v", loaded.Retry.InitialBackoff)
	}
}

// Package config provides configuration loading and structs for litindex.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: LITINDEX_SERVER__PORT=9000 sets server.port.
const EnvPrefix = "LITINDEX_"

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug" koanf:"debug"`
	LogFile    string           `yaml:"log_file,omitempty" koanf:"log_file"`
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Storage    StorageConfig    `yaml:"storage" koanf:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding" koanf:"embedding"`
	Chunking   ChunkingConfig   `yaml:"chunking" koanf:"chunking"`
	Enrichment EnrichmentConfig `yaml:"enrichment" koanf:"enrichment"`
	Indexing   IndexingConfig   `yaml:"indexing" koanf:"indexing"`
	Search     SearchConfig     `yaml:"search" koanf:"search"`
	Retry      RetryConfig      `yaml:"retry" koanf:"retry"`
	Watch      WatchConfig      `yaml:"watch" koanf:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host" koanf:"host"`
	Port           int           `yaml:"port" koanf:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
}

// StorageConfig holds paths for the catalog, vector store, and metadata index.
type StorageConfig struct {
	DatabasePath      string `yaml:"database_path" koanf:"database_path"`
	VectorBackend     string `yaml:"vector_backend" koanf:"vector_backend"`
	VectorPath        string `yaml:"vector_path" koanf:"vector_path"`
	MetadataIndexPath string `yaml:"metadata_index_path" koanf:"metadata_index_path"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" koanf:"provider"`
	Model             string  `yaml:"model,omitempty" koanf:"model"`
	BaseURL           string  `yaml:"base_url,omitempty" koanf:"base_url"`
	APIKey            string  `yaml:"api_key,omitempty" koanf:"api_key"`
	ModelPath         string  `yaml:"model_path,omitempty" koanf:"model_path"`
	OutputName        string  `yaml:"output_name,omitempty" koanf:"output_name"`
	Dimensions        int     `yaml:"dimensions" koanf:"dimensions"`
	MaxTokens         int     `yaml:"max_tokens" koanf:"max_tokens"`
	CacheSize         int     `yaml:"cache_size" koanf:"cache_size"`
	BatchSize         int     `yaml:"batch_size" koanf:"batch_size"`
	Concurrency       int     `yaml:"concurrency" koanf:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second" koanf:"requests_per_second"`
	Burst             int     `yaml:"burst" koanf:"burst"`
}

// ChunkingConfig controls window sizes (in tokens) and passage filtering.
type ChunkingConfig struct {
	MaxTokens            int      `yaml:"max_tokens" koanf:"max_tokens"`
	Overlap              int      `yaml:"overlap" koanf:"overlap"`
	SnapTolerance        int      `yaml:"snap_tolerance" koanf:"snap_tolerance"`
	ReserveSummaryTokens bool     `yaml:"reserve_summary_tokens" koanf:"reserve_summary_tokens"`
	MinTokens            int      `yaml:"min_tokens" koanf:"min_tokens"`
	UnwantedPassages     []string `yaml:"unwanted_passages" koanf:"unwanted_passages"`
	DropCategories       []string `yaml:"drop_categories,omitempty" koanf:"drop_categories"`
}

// EnrichmentConfig controls the prefix added before embedding.
type EnrichmentConfig struct {
	SummaryWords int `yaml:"summary_words" koanf:"summary_words"`
}

// IndexingConfig controls the indexing pipeline.
type IndexingConfig struct {
	Concurrency int      `yaml:"concurrency" koanf:"concurrency"`
	Extensions  []string `yaml:"extensions" koanf:"extensions"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	Metric                     string `yaml:"metric" koanf:"metric"`
	DefaultMaxArticles         int    `yaml:"default_max_articles" koanf:"default_max_articles"`
	DefaultMaxChunksPerArticle int    `yaml:"default_max_chunks_per_article" koanf:"default_max_chunks_per_article"`
	OverFetchFactor            int    `yaml:"over_fetch_factor" koanf:"over_fetch_factor"`
	MinOverFetch               int    `yaml:"min_over_fetch" koanf:"min_over_fetch"`
	EscalationFactor           int    `yaml:"escalation_factor" koanf:"escalation_factor"`
}

// RetryConfig bounds retries of upstream calls.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" koanf:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" koanf:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" koanf:"max_backoff"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories" koanf:"directories"`
	Recursive   *bool    `yaml:"recursive,omitempty" koanf:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads the YAML config at path (if it exists), overlays LITINDEX_*
// environment variables, applies defaults, validates, and expands paths.
// Nested keys use a double underscore: LITINDEX_EMBEDDING__PROVIDER=openai.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	configDir := "."
	if path != "" {
		configDir = filepath.Dir(path)
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorPath = expandPath(cfg.Storage.VectorPath, configDir)
	cfg.Storage.MetadataIndexPath = expandPath(cfg.Storage.MetadataIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.LogFile != "" {
		cfg.LogFile = expandPath(cfg.LogFile, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings that would make indexing or retrieval ill-defined.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderHash, ProviderOpenAI, ProviderONNX:
	default:
		return fmt.Errorf("invalid embedding provider %q: must be one of hash, openai, onnx", c.Embedding.Provider)
	}
	switch c.Storage.VectorBackend {
	case VectorBackendBolt, VectorBackendMemory, VectorBackendChromem:
	default:
		return fmt.Errorf("invalid vector backend %q: must be one of bolt, memory, chromem", c.Storage.VectorBackend)
	}
	if c.Search.Metric != MetricCosine {
		return fmt.Errorf("invalid search metric %q: only cosine is supported", c.Search.Metric)
	}
	if c.Chunking.Overlap >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking overlap (%d) must be smaller than max_tokens (%d)", c.Chunking.Overlap, c.Chunking.MaxTokens)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

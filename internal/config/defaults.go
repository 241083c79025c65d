package config

import "time"

// Embedding providers.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
)

// Vector store backends.
const (
	VectorBackendBolt    = "bolt"
	VectorBackendMemory  = "memory"
	VectorBackendChromem = "chromem"
)

// MetricCosine is cosine similarity over L2-normalized vectors.
const MetricCosine = "cosine"

// DefaultUnwantedPassages are passage types dropped before chunking.
var DefaultUnwantedPassages = []string{`^acknowledge`, `^ref`, `^competing`, `^footnote`}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".litindex/catalog.db"
	}
	if cfg.Storage.VectorBackend == "" {
		cfg.Storage.VectorBackend = VectorBackendBolt
	}
	if cfg.Storage.VectorPath == "" {
		cfg.Storage.VectorPath = ".litindex/vectors"
	}
	if cfg.Storage.MetadataIndexPath == "" {
		cfg.Storage.MetadataIndexPath = ".litindex/metadata.bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHash
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 512
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 1
	}
	if cfg.Chunking.MaxTokens == 0 {
		cfg.Chunking.MaxTokens = 256
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 32
	}
	if cfg.Chunking.SnapTolerance == 0 {
		cfg.Chunking.SnapTolerance = cfg.Chunking.MaxTokens / 5
	}
	if cfg.Chunking.MinTokens == 0 {
		cfg.Chunking.MinTokens = 64
	}
	if cfg.Chunking.UnwantedPassages == nil {
		cfg.Chunking.UnwantedPassages = append([]string(nil), DefaultUnwantedPassages...)
	}
	if cfg.Enrichment.SummaryWords == 0 {
		cfg.Enrichment.SummaryWords = 150
	}
	if cfg.Indexing.Concurrency == 0 {
		cfg.Indexing.Concurrency = 4
	}
	if cfg.Indexing.Extensions == nil {
		cfg.Indexing.Extensions = []string{".json", ".txt", ".md", ".pdf", ".docx", ".xlsx", ".pptx", ".odt", ".rtf"}
	}
	if cfg.Search.Metric == "" {
		cfg.Search.Metric = MetricCosine
	}
	if cfg.Search.DefaultMaxArticles == 0 {
		cfg.Search.DefaultMaxArticles = 3
	}
	if cfg.Search.DefaultMaxChunksPerArticle == 0 {
		cfg.Search.DefaultMaxChunksPerArticle = 5
	}
	if cfg.Search.OverFetchFactor == 0 {
		cfg.Search.OverFetchFactor = 4
	}
	if cfg.Search.MinOverFetch == 0 {
		cfg.Search.MinOverFetch = 50
	}
	if cfg.Search.EscalationFactor == 0 {
		cfg.Search.EscalationFactor = 4
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff == 0 {
		cfg.Retry.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = 2 * time.Second
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

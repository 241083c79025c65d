// Package main is the litindex CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/litindex/internal/config"
	"github.com/hyperjump/litindex/internal/embedding"
	"github.com/hyperjump/litindex/internal/indexer"
	"github.com/hyperjump/litindex/internal/keyword"
	"github.com/hyperjump/litindex/internal/search"
	"github.com/hyperjump/litindex/internal/storage"
	"github.com/hyperjump/litindex/internal/vector"
	"github.com/hyperjump/litindex/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/litindex/config.yaml"

var (
	configPath string
	debugFlag  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "litindex",
		Short: "Annotated literature indexing and article-level semantic retrieval",
		Long: `litindex chunks annotated biomedical documents, enriches each chunk with its
summary and entities, embeds it, and answers free-text queries with the best
matching articles under structured metadata filters.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	root.AddCommand(
		newServerCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newDeleteCmd(),
		newValuesCmd(),
		newStatusCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "litindex version %s\n", version)
			},
		},
	)
	return root
}

// loadConfig loads config from path. When path is the default, config.yaml in
// the working directory takes precedence so a project checkout uses its own config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debug, cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return cfg, logger, nil
}

func retryPolicy(cfg *config.Config) utils.RetryPolicy {
	return utils.RetryPolicy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}
}

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Catalog   *storage.SQLiteCatalog
	Store     vector.Store
	MetaIndex *keyword.BleveIndex
	Embedder  embedding.Embedder
	Indexer   *indexer.Indexer
	Retriever *search.Retriever
}

// Close releases every store. Safe on partially built components.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.MetaIndex != nil {
		_ = c.MetaIndex.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{Config: cfg}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if c.Catalog, err = storage.NewSQLiteCatalog(cfg.Storage.DatabasePath); err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	store, err := vector.New(cfg.Storage.VectorBackend, cfg.Storage.VectorPath, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	c.Store = store
	if c.MetaIndex, err = keyword.NewBleveIndex(cfg.Storage.MetadataIndexPath); err != nil {
		return nil, fmt.Errorf("failed to open metadata index: %w", err)
	}
	if c.Embedder, err = embedding.New(&cfg.Embedding, logger); err != nil {
		return nil, err
	}

	policy := retryPolicy(cfg)
	batcher := embedding.NewBatcher(c.Embedder,
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithConcurrency(cfg.Embedding.Concurrency),
		embedding.WithRetryPolicy(policy),
		embedding.WithLogger(logger),
	)
	if c.Indexer, err = indexer.NewIndexer(c.Store, c.Catalog, batcher, cfg,
		indexer.WithLogger(logger),
		indexer.WithMetadataIndex(c.MetaIndex),
	); err != nil {
		return nil, fmt.Errorf("failed to create indexer: %w", err)
	}
	c.Retriever = search.NewRetriever(c.Store, batcher, &cfg.Search,
		search.WithMetadataIndex(c.MetaIndex),
		search.WithDocuments(c.Catalog),
		search.WithRetryPolicy(policy),
		search.WithLogger(logger),
	)
	logger.Info("components ready",
		zap.String("vector_backend", cfg.Storage.VectorBackend),
		zap.Int("vectors", c.Store.Size()),
		zap.String("embedding_provider", cfg.Embedding.Provider))
	return c, nil
}

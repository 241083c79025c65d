package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/litindex/internal/cli"
	"github.com/hyperjump/litindex/internal/indexer"
	"github.com/hyperjump/litindex/internal/keyword"
	"github.com/hyperjump/litindex/internal/models"
	"github.com/hyperjump/litindex/internal/search"
	"github.com/hyperjump/litindex/internal/server"
	"github.com/hyperjump/litindex/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func outputFormat(cmd *cobra.Command) cli.OutputFormat {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return cli.OutputJSON
	}
	return cli.OutputText
}

// withComponents runs fn against freshly opened stores and closes them afterwards.
func withComponents(fn func(ctx context.Context, c *Components, logger *zap.Logger) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, components, logger)
}

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server and watch the inbox directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []server.Option{
				server.WithLogger(logger),
				server.WithMetadataIndex(components.MetaIndex),
			}
			if len(cfg.Watch.Directories) > 0 {
				watch := watcher.New(cfg.Watch.Directories, cfg.Indexing.Extensions, cfg.Watch.RecursiveOrDefault(),
					components.Indexer, watcher.WithLogger(logger))
				if err := watch.Start(ctx); err != nil {
					return fmt.Errorf("failed to start watcher: %w", err)
				}
				defer watch.Stop()
				go watch.SyncExisting(ctx)
				opts = append(opts, server.WithWatch(watch))
			}

			srv := server.NewServer(components.Retriever, components.Indexer, components.Catalog, components.Store, cfg, opts...)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}
			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <path>...",
		Short: "Index document files or directories (use - to read JSON from stdin)",
		Long: `Index annotated JSON documents and office/text files.

A JSON file may hold one document, an array, or {"documents": [...]}.
Other files are extracted to text and indexed under a path-derived ID.
Directories are walked recursively using the configured extensions.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := outputFormat(cmd)
			return withComponents(func(ctx context.Context, c *Components, logger *zap.Logger) error {
				report, err := indexPaths(ctx, c.Indexer, args, cmd.InOrStdin(), cmd.ErrOrStderr())
				if report != nil {
					if werr := cli.WriteReport(cmd.OutOrStdout(), report, format); werr != nil {
						return werr
					}
				}
				if err != nil {
					return err
				}
				if len(report.Indexed) == 0 && len(report.Skipped) > 0 {
					return fmt.Errorf("nothing indexed, %d document(s) skipped", len(report.Skipped))
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("json", false, "print the indexing report as JSON")
	return cmd
}

// indexPaths indexes each argument: "-" for JSON on stdin, a directory, or a file.
// Per-file failures land in the report; only a cancelled context stops the run.
func indexPaths(ctx context.Context, idx *indexer.Indexer, paths []string, stdin io.Reader, progressOut io.Writer) (*indexer.Report, error) {
	total := &indexer.Report{}
	interactive := false
	if f, ok := progressOut.(*os.File); ok {
		interactive = cli.IsTerminal(f)
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if path == "-" {
			docs, err := indexer.DecodeDocuments(stdin)
			if err != nil {
				total.Skipped = append(total.Skipped, indexer.Failure{DocumentID: "-", Reason: err.Error(), Err: err})
				continue
			}
			r, err := idx.IndexDocuments(ctx, docs)
			total.Merge(r)
			if err != nil {
				return total, err
			}
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			total.Skipped = append(total.Skipped, indexer.Failure{DocumentID: path, Reason: err.Error(), Err: err})
			continue
		}
		if info.IsDir() {
			r, err := idx.IndexDirectory(ctx, path, cli.NewProgress(progressOut, interactive))
			total.Merge(r)
			if err != nil {
				if ctx.Err() != nil {
					return total, err
				}
				total.Skipped = append(total.Skipped, indexer.Failure{DocumentID: path, Reason: err.Error(), Err: err})
			}
			continue
		}
		r, err := idx.IndexFile(ctx, path)
		total.Merge(r)
		if err != nil {
			total.Skipped = append(total.Skipped, indexer.Failure{DocumentID: path, Reason: err.Error(), Err: err})
		}
	}
	return total, nil
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the articles best matching a free-text query",
		Example: `  litindex search "BRAF V600E melanoma"
  litindex search gene X --filter journal=Nature --filter year=2020..2023
  litindex search --articles 5 --chunks 2 --json "tp53 apoptosis"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, _ := cmd.Flags().GetStringArray("filter")
			articles, _ := cmd.Flags().GetInt("articles")
			chunks, _ := cmd.Flags().GetInt("chunks")
			serverURL, _ := cmd.Flags().GetString("server")

			filter, err := cli.ParseFilters(filters)
			if err != nil {
				return err
			}
			query := &models.SearchQuery{
				Query:               buildSearchQuery(args),
				Filter:              filter,
				MaxArticles:         articles,
				MaxChunksPerArticle: chunks,
			}
			if query.Query == "" {
				return models.ErrEmptyQuery
			}

			var results []models.ArticleResponse
			if serverURL != "" {
				results, err = cli.NewClient(serverURL).Search(cmd.Context(), query)
			} else {
				err = withComponents(func(ctx context.Context, c *Components, _ *zap.Logger) error {
					found, err := c.Retriever.Retrieve(ctx, query)
					results = search.Assemble(found)
					return err
				})
			}
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), query.Query, results, outputFormat(cmd))
		},
	}
	cmd.Flags().StringArrayP("filter", "f", nil, "metadata filter key=value, key=a,b or key=lo..hi (repeatable)")
	cmd.Flags().Int("articles", 0, "maximum number of articles (default from config)")
	cmd.Flags().Int("chunks", 0, "maximum chunks per article (default from config)")
	cmd.Flags().String("server", "", "query a running server at this URL instead of opening the stores")
	cmd.Flags().Bool("json", false, "output results as JSON")
	return cmd
}

// buildSearchQuery joins positional arguments so quoting is optional.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Remove a document and its chunks from every store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			serverURL, _ := cmd.Flags().GetString("server")
			var err error
			if serverURL != "" {
				err = cli.NewClient(serverURL).DeleteDocument(cmd.Context(), id)
			} else {
				err = withComponents(func(ctx context.Context, c *Components, _ *zap.Logger) error {
					return c.Indexer.DeleteDocument(ctx, id)
				})
			}
			if err != nil {
				return fmt.Errorf("deletion failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document deleted: %s\n", id)
			return nil
		},
	}
	cmd.Flags().String("server", "", "delete through a running server at this URL")
	return cmd
}

func newValuesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "values <field>",
		Short: "List the distinct values of a metadata field",
		Example: `  litindex values journal
  litindex values journal --near Natrue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field := args[0]
			near, _ := cmd.Flags().GetString("near")
			maxDistance, _ := cmd.Flags().GetInt("max-distance")
			limit, _ := cmd.Flags().GetInt("limit")
			serverURL, _ := cmd.Flags().GetString("server")
			out, format := cmd.OutOrStdout(), outputFormat(cmd)

			if near != "" {
				var suggestions []keyword.Suggestion
				var err error
				if serverURL != "" {
					suggestions, err = cli.NewClient(serverURL).Suggest(cmd.Context(), field, near, maxDistance, limit)
				} else {
					err = withComponents(func(ctx context.Context, c *Components, _ *zap.Logger) error {
						suggestions, err = keyword.SuggestValues(ctx, c.MetaIndex, field, near, maxDistance, limit)
						return err
					})
				}
				if err != nil {
					return err
				}
				return cli.WriteSuggestions(out, field, near, suggestions, format)
			}

			var values []keyword.ValueCount
			var err error
			if serverURL != "" {
				values, err = cli.NewClient(serverURL).Values(cmd.Context(), field, limit)
			} else {
				err = withComponents(func(ctx context.Context, c *Components, _ *zap.Logger) error {
					values, err = c.MetaIndex.DistinctValues(ctx, field)
					return err
				})
				if limit > 0 && len(values) > limit {
					values = values[:limit]
				}
			}
			if err != nil {
				return err
			}
			return cli.WriteValues(out, field, values, format)
		},
	}
	cmd.Flags().String("near", "", "suggest values close to this one instead of listing all")
	cmd.Flags().Int("max-distance", 2, "maximum edit distance for --near")
	cmd.Flags().Int("limit", 0, "maximum number of values (0 = all)")
	cmd.Flags().String("server", "", "ask a running server at this URL")
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show document counts, store sizes and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			serverURL, _ := cmd.Flags().GetString("server")
			var status map[string]interface{}
			var err error
			if serverURL != "" {
				status, err = cli.NewClient(serverURL).Status(cmd.Context())
			} else {
				err = withComponents(func(ctx context.Context, c *Components, logger *zap.Logger) error {
					srv := server.NewServer(c.Retriever, c.Indexer, c.Catalog, c.Store, c.Config,
						server.WithMetadataIndex(c.MetaIndex), server.WithLogger(logger))
					status, err = srv.Status(ctx)
					return err
				})
			}
			if err != nil {
				if serverURL != "" && errors.Is(err, models.ErrUnavailable) {
					return fmt.Errorf("server not reachable at %s: %w", serverURL, err)
				}
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), status, outputFormat(cmd))
		},
	}
	cmd.Flags().String("server", "", "ask a running server at this URL instead of opening the stores")
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

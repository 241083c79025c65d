// Package search turns a free-text query and a metadata filter into ranked,
// per-article groups of matching chunks.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hyperjump/litindex/internal/config"
	"github.com/hyperjump/litindex/internal/keyword"
	"github.com/hyperjump/litindex/internal/models"
	"github.com/hyperjump/litindex/internal/vector"
	"github.com/hyperjump/litindex/pkg/utils"
	"go.uber.org/zap"
)

// QueryEmbedder embeds query text. *embedding.Batcher satisfies it.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// DocumentSource loads display records for articles. *storage.SQLiteCatalog satisfies it.
type DocumentSource interface {
	DocumentsByIDs(ctx context.Context, ids []string) (map[string]*models.Document, error)
}

// Retriever runs filtered similarity retrieval over the IndexStore.
type Retriever struct {
	store     vector.Store
	embedder  QueryEmbedder
	metaIndex keyword.MetadataIndex
	documents DocumentSource
	config    config.SearchConfig
	retry     utils.RetryPolicy
	logger    *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithMetadataIndex intersects results with the index's filter matches.
func WithMetadataIndex(idx keyword.MetadataIndex) Option {
	return func(r *Retriever) { r.metaIndex = idx }
}

// WithDocuments attaches catalog documents to the results.
func WithDocuments(src DocumentSource) Option {
	return func(r *Retriever) { r.documents = src }
}

// WithRetryPolicy sets the retry policy for store queries.
func WithRetryPolicy(p utils.RetryPolicy) Option {
	return func(r *Retriever) { r.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever. Zero values in cfg fall back to the defaults.
func NewRetriever(store vector.Store, embedder QueryEmbedder, cfg *config.SearchConfig, opts ...Option) *Retriever {
	c := config.Config{}
	if cfg != nil {
		c.Search = *cfg
	}
	config.ApplyDefaults(&c)
	r := &Retriever{
		store:    store,
		embedder: embedder,
		config:   c.Search,
		retry:    utils.DefaultRetryPolicy,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OverFetch is the first-round k for a query: max_articles x
// max_chunks_per_article x over_fetch_factor, never below min_over_fetch.
func (r *Retriever) OverFetch(q *models.SearchQuery) int {
	k := q.MaxArticles * q.MaxChunksPerArticle * r.config.OverFetchFactor
	if k < r.config.MinOverFetch {
		k = r.config.MinOverFetch
	}
	return k
}

// Retrieve validates q, embeds it, searches with over-fetch and one
// escalation, groups and caps per article, intersects with the metadata
// index, and ranks articles by their best chunk.
func (r *Retriever) Retrieve(ctx context.Context, q *models.SearchQuery) ([]models.ArticleResult, error) {
	start := time.Now()
	qq := *q
	q = &qq
	if q.MaxArticles == 0 {
		q.MaxArticles = r.config.DefaultMaxArticles
	}
	if q.MaxChunksPerArticle == 0 {
		q.MaxChunksPerArticle = r.config.DefaultMaxChunksPerArticle
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var allowed map[string]struct{}
	// Chunk-level fields only exist on records; the store applies them.
	if articleFilter := q.Filter.ArticleLevel(); !articleFilter.Empty() && r.metaIndex != nil {
		ids, err := r.metaIndex.ArticleIDs(ctx, articleFilter)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata predicate: %w", models.ErrUnavailable, err)
		}
		if len(ids) == 0 {
			return []models.ArticleResult{}, nil
		}
		allowed = ids
	}

	vec, err := r.embedder.EmbedOne(ctx, q.Query)
	if err != nil {
		return nil, err
	}
	vec = utils.Normalized(vec)

	k := r.OverFetch(q)
	var groups []models.ArticleResult
	for round := 0; ; round++ {
		hits, err := r.search(ctx, vec, k, q.Filter)
		if err != nil {
			return nil, err
		}
		groups = groupByArticle(dedupe(hits), q.MaxChunksPerArticle, allowed)
		// Escalate once when grouping starved the result and the store had more to give.
		if round > 0 || len(groups) >= q.MaxArticles || len(hits) < k {
			break
		}
		r.logger.Debug("Escalating over-fetch",
			zap.Int("k", k), zap.Int("articles", len(groups)), zap.Int("want", q.MaxArticles))
		k *= r.config.EscalationFactor
	}

	rankArticles(groups)
	if len(groups) > q.MaxArticles {
		groups = groups[:q.MaxArticles]
	}
	r.attachDocuments(ctx, groups)

	r.logger.Debug("Retrieved",
		zap.String("query", utils.Truncate(q.Query, 80)),
		zap.Int("articles", len(groups)),
		zap.Int("k", k),
		zap.Duration("took", time.Since(start)))
	return groups, nil
}

func (r *Retriever) search(ctx context.Context, vec []float32, k int, filter models.QueryFilter) ([]models.ScoredChunk, error) {
	var hits []models.ScoredChunk
	err := utils.Retry(ctx, r.retry, func(ctx context.Context) error {
		var err error
		hits, err = r.store.Search(ctx, vec, k, filter)
		if errors.Is(err, models.ErrMalformedInput) {
			return utils.Permanent(err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrMalformedInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: vector search: %w", models.ErrUnavailable, err)
	}
	return hits, nil
}

func (r *Retriever) attachDocuments(ctx context.Context, groups []models.ArticleResult) {
	if r.documents == nil || len(groups) == 0 {
		return
	}
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.DocumentID
	}
	docs, err := r.documents.DocumentsByIDs(ctx, ids)
	if err != nil {
		// Display metadata only; results are still correct without it.
		r.logger.Warn("Failed to load result documents", zap.Error(err))
		return
	}
	for i := range groups {
		groups[i].Document = docs[groups[i].DocumentID]
	}
}

// dedupe keeps one hit per chunk ID: the most recently created record, and
// on equal timestamps the higher score.
func dedupe(hits []models.ScoredChunk) []models.ScoredChunk {
	best := make(map[string]int, len(hits))
	out := make([]models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		i, seen := best[h.Record.ChunkID]
		if !seen {
			best[h.Record.ChunkID] = len(out)
			out = append(out, h)
			continue
		}
		cur := out[i]
		if h.Record.CreatedAt.After(cur.Record.CreatedAt) ||
			(h.Record.CreatedAt.Equal(cur.Record.CreatedAt) && h.Score > cur.Score) {
			out[i] = h
		}
	}
	return out
}

// groupByArticle groups hits by document, orders each group by score
// descending (chunk ID ascending on ties) and keeps maxChunks per group.
// When allowed is non-nil, documents outside it are dropped.
func groupByArticle(hits []models.ScoredChunk, maxChunks int, allowed map[string]struct{}) []models.ArticleResult {
	index := make(map[string]int)
	var groups []models.ArticleResult
	for _, h := range hits {
		docID := h.DocumentID()
		if allowed != nil {
			if _, ok := allowed[docID]; !ok {
				continue
			}
		}
		i, ok := index[docID]
		if !ok {
			i = len(groups)
			index[docID] = i
			groups = append(groups, models.ArticleResult{DocumentID: docID})
		}
		groups[i].Chunks = append(groups[i].Chunks, h)
	}
	for i := range groups {
		chunks := groups[i].Chunks
		sort.Slice(chunks, func(a, b int) bool {
			if chunks[a].Score != chunks[b].Score {
				return chunks[a].Score > chunks[b].Score
			}
			return chunks[a].Record.ChunkID < chunks[b].Record.ChunkID
		})
		if len(chunks) > maxChunks {
			groups[i].Chunks = chunks[:maxChunks]
		}
	}
	return groups
}

// rankArticles orders groups by best chunk score descending, document ID ascending on ties.
func rankArticles(groups []models.ArticleResult) {
	sort.Slice(groups, func(i, j int) bool {
		bi, bj := groups[i].BestScore(), groups[j].BestScore()
		if bi != bj {
			return bi > bj
		}
		return groups[i].DocumentID < groups[j].DocumentID
	})
}

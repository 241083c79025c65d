package indexer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hyperjump/litindex/internal/config"
	"github.com/hyperjump/litindex/internal/embedding"
	"github.com/hyperjump/litindex/internal/extract"
	"github.com/hyperjump/litindex/internal/keyword"
	"github.com/hyperjump/litindex/internal/models"
	"github.com/hyperjump/litindex/internal/storage"
	"github.com/hyperjump/litindex/internal/vector"
	"go.uber.org/zap"
)

// ChunkEmbedder embeds chunk texts with per-text results. *embedding.Batcher satisfies it.
type ChunkEmbedder interface {
	EmbedAll(ctx context.Context, texts []string) []embedding.Result
}

// lockStripes serializes writes of the same document ID across concurrent calls.
const lockStripes = 64

// Indexer drives the indexing path: validate, chunk, enrich, embed, then
// replace the document in the vector store, the catalog and the metadata index.
type Indexer struct {
	store        vector.Store
	catalog      storage.Catalog
	metaIndex    keyword.MetadataIndex
	embedder     ChunkEmbedder
	preprocessor *Preprocessor
	chunker      *Chunker
	enricher     *Enricher
	extractor    *extract.Extractor
	concurrency  int
	extensions   []string
	now          func() time.Time
	logger       *zap.Logger
	locks        [lockStripes]sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for indexing events and skipped documents.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithMetadataIndex keeps idx's predicate index in step with the stores.
func WithMetadataIndex(mi keyword.MetadataIndex) IndexerOption {
	return func(idx *Indexer) { idx.metaIndex = mi }
}

// WithExtractor overrides the extractor used for internal files.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// WithClock overrides the creation-time clock.
func WithClock(now func() time.Time) IndexerOption {
	return func(idx *Indexer) { idx.now = now }
}

// NewIndexer creates an indexer. cfg supplies chunking, enrichment and
// indexing settings; zero values fall back to the defaults.
func NewIndexer(store vector.Store, catalog storage.Catalog, embedder ChunkEmbedder, cfg *config.Config, opts ...IndexerOption) (*Indexer, error) {
	c := config.Config{}
	if cfg != nil {
		c = *cfg
	}
	config.ApplyDefaults(&c)

	pre, err := NewPreprocessor(c.Chunking.UnwantedPassages, c.Chunking.DropCategories)
	if err != nil {
		return nil, err
	}
	chunkerOpts := []ChunkerOption{WithSnapTolerance(c.Chunking.SnapTolerance)}
	if c.Chunking.ReserveSummaryTokens {
		chunkerOpts = append(chunkerOpts, WithSummaryReserve(c.Enrichment.SummaryWords, c.Chunking.MinTokens))
	}
	idx := &Indexer{
		store:        store,
		catalog:      catalog,
		embedder:     embedder,
		preprocessor: pre,
		chunker:      NewChunker(c.Chunking.MaxTokens, c.Chunking.Overlap, chunkerOpts...),
		enricher:     NewEnricher(c.Enrichment.SummaryWords),
		extractor:    extract.NewExtractor(),
		concurrency:  c.Indexing.Concurrency,
		extensions:   c.Indexing.Extensions,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.concurrency < 1 {
		idx.concurrency = 1
	}
	return idx, nil
}

// IndexDocuments indexes docs with at most the configured number in flight.
// Per-document problems are recorded in the report and never stop the batch;
// the returned error is only set when ctx ends first.
func (idx *Indexer) IndexDocuments(ctx context.Context, docs []*models.Document) (*Report, error) {
	report := &Report{}
	// A later copy of the same ID supersedes an earlier one within a batch.
	last := make(map[string]int, len(docs))
	for i, d := range docs {
		if d != nil {
			last[d.ID] = i
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, idx.concurrency)
	for i, doc := range docs {
		if doc == nil {
			report.skip("", fmt.Errorf("%w: null document", models.ErrMalformedInput))
			continue
		}
		if last[doc.ID] != i {
			report.skip(doc.ID, fmt.Errorf("%w by a later copy in the same batch", ErrSuperseded))
			continue
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return report, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(doc *models.Document) {
			defer wg.Done()
			defer func() { <-sem }()
			r := idx.indexOne(ctx, doc)
			mu.Lock()
			report.Merge(r)
			mu.Unlock()
		}(doc)
	}
	wg.Wait()
	return report, ctx.Err()
}

// IndexDocument indexes one document and returns its failure, if any.
func (idx *Indexer) IndexDocument(ctx context.Context, doc *models.Document) error {
	report, err := idx.IndexDocuments(ctx, []*models.Document{doc})
	if err != nil {
		return err
	}
	return report.Err()
}

func (idx *Indexer) indexOne(ctx context.Context, doc *models.Document) *Report {
	report := &Report{}
	prepared, err := idx.preprocessor.Prepare(doc)
	if err != nil {
		idx.logger.Warn("Skipping document", zap.String("id", doc.ID), zap.Error(err))
		report.skip(doc.ID, err)
		return report
	}

	chunks := idx.chunker.Chunk(prepared)
	if len(chunks) == 0 {
		report.skip(prepared.ID, fmt.Errorf("%w: document %s produced no chunks", models.ErrMalformedInput, prepared.ID))
		return report
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		chunks[i].EnrichedText = idx.enricher.Enrich(&chunks[i], prepared)
		texts[i] = chunks[i].EnrichedText
	}

	results := idx.embedder.EmbedAll(ctx, texts)
	for i, r := range results {
		if r.Err != nil {
			report.FailedChunks = append(report.FailedChunks, Failure{
				DocumentID: prepared.ID,
				ChunkID:    chunks[i].ID,
				Sequence:   chunks[i].Sequence,
				Reason:     r.Err.Error(),
				Err:        r.Err,
			})
		}
	}
	if n := len(report.FailedChunks); n > 0 {
		err := fmt.Errorf("%d of %d chunks failed to embed: %w", n, len(chunks), report.FailedChunks[0].Err)
		idx.logger.Warn("Skipping document, previous version kept",
			zap.String("id", prepared.ID), zap.Int("failed_chunks", n), zap.Error(err))
		report.skip(prepared.ID, err)
		return report
	}

	now := idx.now()
	prepared.UpdatedAt = now
	records := make([]*models.ChunkRecord, len(chunks))
	rows := make([]*models.ChunkRow, len(chunks))
	for i := range chunks {
		chunks[i].CreatedAt = now
		records[i] = newChunkRecord(&chunks[i], prepared, results[i].Vector)
		rows[i] = newChunkRow(&chunks[i])
	}

	if err := idx.commit(ctx, prepared, records, rows); err != nil {
		idx.logger.Error("Failed to store document", zap.String("id", prepared.ID), zap.Error(err))
		report.skip(prepared.ID, err)
		return report
	}
	idx.logger.Debug("Document indexed", zap.String("id", prepared.ID), zap.Int("chunks", len(chunks)))
	report.Indexed = append(report.Indexed, prepared.ID)
	report.Chunks += len(chunks)
	return report
}

// commit replaces the document in every store. Each store swaps atomically;
// a failure part way leaves the earlier stores on the new version, which
// the next successful write of the same document repairs.
func (idx *Indexer) commit(ctx context.Context, doc *models.Document, records []*models.ChunkRecord, rows []*models.ChunkRow) error {
	mu := idx.lockFor(doc.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := idx.store.ReplaceDocument(ctx, doc.ID, records); err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	if err := idx.catalog.ReplaceDocument(ctx, doc, rows); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if idx.metaIndex != nil {
		if err := idx.metaIndex.Index(ctx, doc); err != nil {
			return fmt.Errorf("metadata index: %w", err)
		}
	}
	return nil
}

// DeleteDocument removes a document from every store. It returns
// models.ErrNotFound only when no store knew the document.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	mu := idx.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	removed, err := idx.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	found := removed > 0
	switch err := idx.catalog.DeleteDocument(ctx, id); {
	case err == nil:
		found = true
	case !errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("catalog: %w", err)
	}
	if idx.metaIndex != nil {
		if err := idx.metaIndex.Delete(ctx, id); err != nil {
			return fmt.Errorf("metadata index: %w", err)
		}
	}
	if !found {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	idx.logger.Debug("Document deleted", zap.String("id", id), zap.Int("chunks", removed))
	return nil
}

func (idx *Indexer) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &idx.locks[h.Sum32()%lockStripes]
}

func newChunkRecord(c *models.Chunk, doc *models.Document, vec []float32) *models.ChunkRecord {
	meta := doc.Metadata.Flatten()
	if doc.Type != "" {
		meta[models.FieldDocumentType] = doc.Type
	}
	return &models.ChunkRecord{
		ChunkID:         c.ID,
		DocumentID:      c.DocumentID,
		Name:            c.Name,
		Sequence:        c.Sequence,
		ChunkType:       c.Type,
		Source:          c.Source,
		Text:            c.Text,
		EnrichedText:    c.EnrichedText,
		Length:          len(c.Text),
		TokenCount:      c.TokenCount,
		Offset:          c.Start,
		AnnotationCount: len(c.Annotations),
		Entities:        Entities(c),
		Metadata:        meta,
		CreatedAt:       c.CreatedAt,
		Vector:          vec,
	}
}

func newChunkRow(c *models.Chunk) *models.ChunkRow {
	return &models.ChunkRow{
		ChunkID:         c.ID,
		DocumentID:      c.DocumentID,
		Sequence:        c.Sequence,
		ChunkType:       c.Type,
		VectorField:     models.VectorField,
		AnnotationCount: len(c.Annotations),
		Source:          c.Source,
		CreatedAt:       c.CreatedAt,
	}
}

package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/litindex/internal/models"
	chromem "github.com/philippgille/chromem-go"
)

const chromemCollection = "chunks"

const (
	chromemKeyChunkID  = "chunk_id"
	chromemKeyDocument = "document_id"
	chromemKeyPayload  = "payload"
)

// ChromemStore keeps records in a persistent chromem-go collection. The
// payload travels as JSON in document metadata; filters are evaluated in Go
// after the vector query because chromem's where clause only matches exact strings.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimensions int
	// chromem writes documents one at a time; the lock makes a document
	// replacement appear atomic to Search.
	mu sync.RWMutex
}

// OpenChromemStore opens (or creates) a persistent chromem DB at dir.
func OpenChromemStore(dir string, dimensions int) (*ChromemStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	// Vectors always arrive precomputed; the embedding func is never called.
	noEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("chromem store requires precomputed vectors")
	}
	col, err := db.GetOrCreateCollection(chromemCollection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemStore{db: db, collection: col, dimensions: dimensions}, nil
}

// Upsert adds records, replacing any with the same chunk ID.
func (s *ChromemStore) Upsert(ctx context.Context, records ...*models.ChunkRecord) error {
	prepared, err := prepareRecords(s.dimensions, "", records)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(ctx, prepared)
}

// ReplaceDocument deletes docID's chunks and adds records while holding the
// write lock. If an add fails, the partial write is removed and the previous
// chunks are restored.
func (s *ChromemStore) ReplaceDocument(ctx context.Context, docID string, records []*models.ChunkRecord) error {
	prepared, err := prepareRecords(s.dimensions, docID, records)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, err := s.documentChunks(ctx, docID)
	if err != nil {
		return err
	}
	if err := s.collection.Delete(ctx, map[string]string{chromemKeyDocument: docID}, nil); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", docID, err)
	}
	if err := s.add(ctx, prepared); err != nil {
		if rerr := s.restore(context.WithoutCancel(ctx), docID, previous); rerr != nil {
			return errors.Join(err, fmt.Errorf("restore chunks of %s: %w", docID, rerr))
		}
		return err
	}
	return nil
}

func (s *ChromemStore) restore(ctx context.Context, docID string, previous []*models.ChunkRecord) error {
	if err := s.collection.Delete(ctx, map[string]string{chromemKeyDocument: docID}, nil); err != nil {
		return err
	}
	return s.add(ctx, previous)
}

func (s *ChromemStore) add(ctx context.Context, records []*models.ChunkRecord) error {
	for _, r := range records {
		payload := *r
		payload.Vector = nil
		data, err := json.Marshal(&payload)
		if err != nil {
			return fmt.Errorf("encode chunk %s: %w", r.ChunkID, err)
		}
		content := r.EnrichedText
		if content == "" {
			content = r.Text
		}
		// AddDocument overwrites an existing ID.
		err = s.collection.AddDocument(ctx, chromem.Document{
			ID:      r.ChunkID,
			Content: content,
			Metadata: map[string]string{
				chromemKeyChunkID:  r.ChunkID,
				chromemKeyDocument: r.DocumentID,
				chromemKeyPayload:  string(data),
			},
			Embedding: r.Vector,
		})
		if err != nil {
			return fmt.Errorf("add chunk %s: %w", r.ChunkID, err)
		}
	}
	return nil
}

// Search queries the whole collection when filtering and the top k otherwise.
func (s *ChromemStore) Search(ctx context.Context, query []float32, k int, filter models.QueryFilter) ([]models.ScoredChunk, error) {
	if err := checkQuery(s.dimensions, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	n := k
	if !filter.Empty() || n > count {
		n = count
	}
	results, err := s.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	hits := make([]models.ScoredChunk, 0, len(results))
	for _, res := range results {
		r, err := decodeChromem(res.Metadata, res.Embedding)
		if err != nil {
			return nil, err
		}
		if !filter.Empty() && !filter.Matches(r.Field) {
			continue
		}
		hits = append(hits, models.ScoredChunk{Record: r, Score: InnerProduct(query, r.Vector)})
	}
	return topK(hits, k), nil
}

// Delete removes docID's chunks.
func (s *ChromemStore) Delete(ctx context.Context, docID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.documentChunks(ctx, docID)
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return 0, nil
	}
	if err := s.collection.Delete(ctx, map[string]string{chromemKeyDocument: docID}, nil); err != nil {
		return 0, fmt.Errorf("delete chunks of %s: %w", docID, err)
	}
	return len(existing), nil
}

// Get returns the record for chunkID.
func (s *ChromemStore) Get(ctx context.Context, chunkID string) (*models.ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.collection.GetByID(ctx, chunkID)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", chunkID, models.ErrNotFound)
	}
	return decodeChromem(doc.Metadata, doc.Embedding)
}

// DocumentChunks returns docID's records ordered by sequence.
func (s *ChromemStore) DocumentChunks(ctx context.Context, docID string) ([]*models.ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documentChunks(ctx, docID)
}

func (s *ChromemStore) documentChunks(ctx context.Context, docID string) ([]*models.ChunkRecord, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	// chromem has no list-by-metadata call; a filtered query with any unit
	// vector and n = collection size returns every match.
	unit := make([]float32, s.dimensions)
	unit[0] = 1
	results, err := s.collection.QueryEmbedding(ctx, unit, count, map[string]string{chromemKeyDocument: docID}, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query by document: %w", err)
	}
	out := make([]*models.ChunkRecord, 0, len(results))
	for _, res := range results {
		r, err := decodeChromem(res.Metadata, res.Embedding)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	bySequence(out)
	return out, nil
}

// Dimensions returns the vector dimension.
func (s *ChromemStore) Dimensions() int { return s.dimensions }

// Size returns the number of stored chunks.
func (s *ChromemStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count()
}

// Close is a no-op; the persistent DB writes each document as it is added.
func (s *ChromemStore) Close() error {
	return nil
}

func decodeChromem(meta map[string]string, embedding []float32) (*models.ChunkRecord, error) {
	var r models.ChunkRecord
	if err := json.Unmarshal([]byte(meta[chromemKeyPayload]), &r); err != nil {
		return nil, fmt.Errorf("decode chunk %s: %w", meta[chromemKeyChunkID], err)
	}
	r.Vector = embedding
	return &r, nil
}

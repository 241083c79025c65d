package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/litindex/internal/models"
)

// MemoryStore is an in-memory store using brute-force inner product search.
// It backs tests and ephemeral runs, and is the search mirror of BoltStore.
type MemoryStore struct {
	dimensions int
	records    map[string]*models.ChunkRecord
	docChunks  map[string]map[string]struct{}
	mu         sync.RWMutex
}

// NewMemoryStore creates an empty store for vectors of the given dimension.
func NewMemoryStore(dimensions int) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryStore{
		dimensions: dimensions,
		records:    make(map[string]*models.ChunkRecord),
		docChunks:  make(map[string]map[string]struct{}),
	}, nil
}

// Upsert inserts or replaces records by chunk ID.
func (m *MemoryStore) Upsert(ctx context.Context, records ...*models.ChunkRecord) error {
	prepared, err := prepareRecords(m.dimensions, "", records)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(prepared)
	return nil
}

// ReplaceDocument swaps docID's chunk set under one write lock.
func (m *MemoryStore) ReplaceDocument(ctx context.Context, docID string, records []*models.ChunkRecord) error {
	prepared, err := prepareRecords(m.dimensions, docID, records)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(docID)
	m.put(prepared)
	return nil
}

// put stores prepared records. Caller holds the write lock.
func (m *MemoryStore) put(records []*models.ChunkRecord) {
	for _, r := range records {
		if old, ok := m.records[r.ChunkID]; ok && old.DocumentID != r.DocumentID {
			delete(m.docChunks[old.DocumentID], r.ChunkID)
		}
		m.records[r.ChunkID] = r
		ids, ok := m.docChunks[r.DocumentID]
		if !ok {
			ids = make(map[string]struct{})
			m.docChunks[r.DocumentID] = ids
		}
		ids[r.ChunkID] = struct{}{}
	}
}

// remove drops docID's chunks. Caller holds the write lock.
func (m *MemoryStore) remove(docID string) int {
	ids := m.docChunks[docID]
	for id := range ids {
		delete(m.records, id)
	}
	delete(m.docChunks, docID)
	return len(ids)
}

// Search scores every record passing filter and returns the top k.
func (m *MemoryStore) Search(ctx context.Context, query []float32, k int, filter models.QueryFilter) ([]models.ScoredChunk, error) {
	if err := checkQuery(m.dimensions, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := make([]models.ScoredChunk, 0, len(m.records))
	for _, r := range m.records {
		if !filter.Empty() && !filter.Matches(r.Field) {
			continue
		}
		hits = append(hits, models.ScoredChunk{Record: r, Score: InnerProduct(query, r.Vector)})
	}
	return topK(hits, k), nil
}

// Delete removes every chunk of docID.
func (m *MemoryStore) Delete(ctx context.Context, docID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(docID), nil
}

// Get returns the record for chunkID.
func (m *MemoryStore) Get(ctx context.Context, chunkID string) (*models.ChunkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[chunkID]
	if !ok {
		return nil, fmt.Errorf("chunk %s: %w", chunkID, models.ErrNotFound)
	}
	return r, nil
}

// DocumentChunks returns docID's records ordered by sequence.
func (m *MemoryStore) DocumentChunks(ctx context.Context, docID string) ([]*models.ChunkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.ChunkRecord, 0, len(m.docChunks[docID]))
	for id := range m.docChunks[docID] {
		out = append(out, m.records[id])
	}
	bySequence(out)
	return out, nil
}

// Dimensions returns the vector dimension.
func (m *MemoryStore) Dimensions() int { return m.dimensions }

// Size returns the number of stored chunks.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

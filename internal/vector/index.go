// Package vector persists chunk records with their embeddings and answers
// filtered similarity queries over them.
package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/litindex/internal/models"
	"github.com/hyperjump/litindex/pkg/utils"
)

// Store persists chunk records keyed by chunk ID. A record becomes visible
// to Search together with its vector; readers never observe half a write.
type Store interface {
	// Upsert inserts or fully replaces records by chunk ID.
	Upsert(ctx context.Context, records ...*models.ChunkRecord) error
	// ReplaceDocument removes docID's previous chunks and stores records in one step.
	ReplaceDocument(ctx context.Context, docID string, records []*models.ChunkRecord) error
	// Search returns up to k records satisfying filter, by similarity descending
	// with ties broken by chunk ID ascending.
	Search(ctx context.Context, query []float32, k int, filter models.QueryFilter) ([]models.ScoredChunk, error)
	// Delete removes every chunk of docID and returns how many were removed.
	Delete(ctx context.Context, docID string) (int, error)
	// Get returns one record or models.ErrNotFound.
	Get(ctx context.Context, chunkID string) (*models.ChunkRecord, error)
	// DocumentChunks returns docID's records ordered by sequence.
	DocumentChunks(ctx context.Context, docID string) ([]*models.ChunkRecord, error)
	Dimensions() int
	Size() int
	Close() error
}

// prepareRecords validates records and returns copies with normalized vectors.
// Stored records are never mutated afterwards.
func prepareRecords(dimensions int, docID string, records []*models.ChunkRecord) ([]*models.ChunkRecord, error) {
	out := make([]*models.ChunkRecord, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r == nil {
			return nil, fmt.Errorf("%w: nil chunk record", models.ErrMalformedInput)
		}
		if r.ChunkID == "" || r.DocumentID == "" {
			return nil, fmt.Errorf("%w: chunk record needs chunk and document ids", models.ErrMalformedInput)
		}
		if docID != "" && r.DocumentID != docID {
			return nil, fmt.Errorf("%w: chunk %s belongs to %s, not %s", models.ErrMalformedInput, r.ChunkID, r.DocumentID, docID)
		}
		if len(r.Vector) != dimensions {
			return nil, fmt.Errorf("%w: chunk %s vector dimension %d, expected %d", models.ErrMalformedInput, r.ChunkID, len(r.Vector), dimensions)
		}
		if seen[r.ChunkID] {
			return nil, fmt.Errorf("%w: duplicate chunk id %s in one write", models.ErrMalformedInput, r.ChunkID)
		}
		seen[r.ChunkID] = true
		c := *r
		c.Vector = utils.Normalized(r.Vector)
		out = append(out, &c)
	}
	return out, nil
}

// topK orders hits by score descending, chunk ID ascending, and keeps k.
func topK(hits []models.ScoredChunk, k int) []models.ScoredChunk {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.ChunkID < hits[j].Record.ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func bySequence(records []*models.ChunkRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Sequence != records[j].Sequence {
			return records[i].Sequence < records[j].Sequence
		}
		return records[i].ChunkID < records[j].ChunkID
	})
}

func checkQuery(dimensions int, query []float32) error {
	if len(query) != dimensions {
		return fmt.Errorf("%w: query dimension %d, expected %d", models.ErrMalformedInput, len(query), dimensions)
	}
	return nil
}

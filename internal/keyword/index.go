// Package keyword keeps a bleve index of document-level metadata used as the
// external predicate source for filtered retrieval.
package keyword

import (
	"context"

	"github.com/hyperjump/litindex/internal/models"
)

// MetadataIndex answers structured predicates over document metadata.
type MetadataIndex interface {
	// Index adds or replaces the document's metadata entry.
	Index(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, docID string) error
	// ArticleIDs returns the IDs of documents satisfying filter.
	ArticleIDs(ctx context.Context, filter models.QueryFilter) (map[string]struct{}, error)
	// DistinctValues lists the values of field with their document counts.
	DistinctValues(ctx context.Context, field string) ([]ValueCount, error)
	DocCount() (uint64, error)
	Close() error
}

// ValueCount is one distinct field value and how many documents carry it.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

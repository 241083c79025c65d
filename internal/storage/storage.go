// Package storage keeps the relational catalog of indexed documents and
// their chunk rows, used for bookkeeping and display metadata.
package storage

import (
	"context"

	"github.com/hyperjump/litindex/internal/models"
)

// Catalog records documents and chunk rows. It never stores document text,
// chunk text, annotations or vectors.
type Catalog interface {
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	DocumentsByIDs(ctx context.Context, ids []string) (map[string]*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	// DocumentIDsBySourcePath lists documents ingested from the given file.
	DocumentIDsBySourcePath(ctx context.Context, path string) ([]string, error)

	// ReplaceChunks swaps the document's chunk rows in one transaction.
	ReplaceChunks(ctx context.Context, docID string, rows []*models.ChunkRow) error
	// ReplaceDocument upserts the document and swaps its chunk rows in one transaction.
	ReplaceDocument(ctx context.Context, doc *models.Document, rows []*models.ChunkRow) error
	GetChunks(ctx context.Context, docID string) ([]*models.ChunkRow, error)

	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}

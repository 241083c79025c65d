package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/litindex/internal/models"
)

func openCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "db", "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func chunkRows(docID string, n int) []*models.ChunkRow {
	rows := make([]*models.ChunkRow, n)
	for i := range rows {
		rows[i] = &models.ChunkRow{
			ChunkID:         docID + "-" + string(rune('a'+i)),
			DocumentID:      docID,
			Sequence:        i,
			ChunkType:       "sliding_window",
			AnnotationCount: i,
			Source:          models.SourcePMC,
			CreatedAt:       time.Now().UTC(),
		}
	}
	return rows
}

func TestSQLiteCatalog_Documents(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:        "PMC1",
		Source:    models.SourcePMC,
		SizeBytes: 42,
		Metadata: models.NewSourceMetadata(map[string]interface{}{
			"title": "BRAF in melanoma", "journal": "Nature", "year": 2021, "pmid": "123",
		}),
	}
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	created := doc.CreatedAt

	got, err := store.GetDocument(ctx, "PMC1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "PMC1" || got.Source != models.SourcePMC || got.SizeBytes != 42 {
		t.Errorf("got %+v", got)
	}
	if got.Metadata.Title != "BRAF in melanoma" || got.Metadata.Year != 2021 {
		t.Errorf("metadata = %+v", got.Metadata)
	}
	if got.Text != "" {
		t.Error("catalog must not store document text")
	}

	doc.Metadata.Journal = "Cell"
	doc.UpdatedAt = time.Time{}
	doc.CreatedAt = time.Time{}
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDocument(ctx, "PMC1")
	if got.Metadata.Journal != "Cell" {
		t.Errorf("expected Cell, got %s", got.Metadata.Journal)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_dt changed on update: %v -> %v", created, got.CreatedAt)
	}

	if err := store.UpsertDocument(ctx, &models.Document{ID: "NCT1", Source: models.SourceClinicalTrial}); err != nil {
		t.Fatal(err)
	}
	list, err := store.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 docs, got %d", len(list))
	}
	byID, err := store.DocumentsByIDs(ctx, []string{"PMC1", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byID) != 1 || byID["PMC1"] == nil {
		t.Errorf("DocumentsByIDs = %v", byID)
	}

	if err := store.DeleteDocument(ctx, "PMC1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, "PMC1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteDocument(ctx, "PMC1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete: got %v", err)
	}
}

func TestSQLiteCatalog_ReplaceDocument(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()
	doc := &models.Document{ID: "d1", Source: models.SourcePMC}

	if err := store.ReplaceDocument(ctx, doc, chunkRows("d1", 3)); err != nil {
		t.Fatal(err)
	}
	rows, err := store.GetChunks(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[2].Sequence != 2 || rows[0].VectorField != models.VectorField {
		t.Fatalf("rows = %+v", rows)
	}

	if err := store.ReplaceDocument(ctx, doc, chunkRows("d1", 1)); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountChunks(ctx); n != 1 {
		t.Errorf("stale chunk rows remain: %d", n)
	}

	bad := chunkRows("other", 1)
	if err := store.ReplaceChunks(ctx, "d1", bad); !errors.Is(err, models.ErrMalformedInput) {
		t.Errorf("foreign chunk row: got %v", err)
	}
	if n, _ := store.CountChunks(ctx); n != 1 {
		t.Errorf("failed replace must roll back, got %d rows", n)
	}

	if err := store.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountChunks(ctx); n != 0 {
		t.Errorf("delete must remove chunk rows, got %d", n)
	}
}

func TestSQLiteCatalog_Counts(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	n, err := store.CountDocuments(ctx)
	if err != nil || n != 0 {
		t.Errorf("CountDocuments: %v, %d", err, n)
	}
	_ = store.UpsertDocument(ctx, &models.Document{ID: "x", Source: models.SourceInternalFile})
	n, _ = store.CountDocuments(ctx)
	if n != 1 {
		t.Errorf("expected 1 document, got %d", n)
	}
}

func TestSQLiteCatalog_DocumentIDsBySourcePath(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()
	for _, d := range []*models.Document{
		{ID: "PMC2", Source: models.SourcePMC, SourcePath: "/inbox/batch.json"},
		{ID: "PMC1", Source: models.SourcePMC, SourcePath: "/inbox/batch.json"},
		{ID: "PMC3", Source: models.SourcePMC, SourcePath: "/inbox/other.json"},
	} {
		if err := store.UpsertDocument(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := store.DocumentIDsBySourcePath(ctx, "/inbox/batch.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "PMC1" || ids[1] != "PMC2" {
		t.Errorf("ids = %v", ids)
	}
	ids, err = store.DocumentIDsBySourcePath(ctx, "/inbox/missing.json")
	if err != nil || len(ids) != 0 {
		t.Errorf("ids = %v, err = %v", ids, err)
	}
}

package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/litindex/internal/models"
)

func testDocs() []*models.Document {
	return []*models.Document{
		{
			ID: "PMC1", Source: models.SourcePMC, Type: "article",
			Metadata: models.NewSourceMetadata(map[string]interface{}{"journal": "Nature", "year": 2019, "published": "2019-05-01"}),
			Annotations: []models.Annotation{
				{Category: models.CategoryGene, Text: "BRAF", Identifier: "673"},
			},
		},
		{
			ID: "PMC2", Source: models.SourcePMC,
			Metadata: models.NewSourceMetadata(map[string]interface{}{"journal": "Cell", "year": 2021}),
			Annotations: []models.Annotation{
				{Category: models.CategoryGene, Text: " TP53 ", Identifier: "7157 "},
				{Category: models.CategoryGene, Text: "  "},
			},
		},
		{
			ID: "NCT1", Source: models.SourceClinicalTrial,
			Metadata: models.NewSourceMetadata(map[string]interface{}{"journal": "Nature", "year": 2023, "phase": "2"}),
		},
	}
}

func openTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewMemoryBleveIndex()
	if err != nil {
		t.Fatalf("NewMemoryBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	ctx := context.Background()
	for _, d := range testDocs() {
		if err := idx.Index(ctx, d); err != nil {
			t.Fatalf("Index(%s): %v", d.ID, err)
		}
	}
	return idx
}

func ids(set map[string]struct{}) map[string]bool {
	out := make(map[string]bool, len(set))
	for id := range set {
		out[id] = true
	}
	return out
}

func TestBleveIndex_ArticleIDs(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter models.QueryFilter
		want   []string
	}{
		{"empty filter matches all", nil, []string{"PMC1", "PMC2", "NCT1"}},
		{"single value", models.QueryFilter{"journal": models.Eq("Nature")}, []string{"PMC1", "NCT1"}},
		{"value set", models.QueryFilter{"journal": models.Eq("Nature", "Cell")}, []string{"PMC1", "PMC2", "NCT1"}},
		{"conjunction", models.QueryFilter{"journal": models.Eq("Nature"), "source": models.Eq("pmc")}, []string{"PMC1"}},
		{"range", models.QueryFilter{"year": models.Between(2020, 2023)}, []string{"PMC2", "NCT1"}},
		{"numeric equality", models.QueryFilter{"year": models.Eq("2021.0")}, []string{"PMC2"}},
		{"entity identifier", models.QueryFilter{"genes": models.Eq("7157")}, []string{"PMC2"}},
		{"entity text", models.QueryFilter{"genes": models.Eq("BRAF")}, []string{"PMC1"}},
		{"padded entity text", models.QueryFilter{"genes": models.Eq("TP53")}, []string{"PMC2"}},
		{"document type", models.QueryFilter{"document_type": models.Eq("article")}, []string{"PMC1"}},
		{"date-like string", models.QueryFilter{"published": models.Eq("2019-05-01")}, []string{"PMC1"}},
		{"case-sensitive", models.QueryFilter{"journal": models.Eq("nature")}, nil},
		{"unknown field", models.QueryFilter{"phase": models.Eq("3")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.ArticleIDs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ArticleIDs: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ArticleIDs = %v, want %v", ids(got), tt.want)
			}
			for _, id := range tt.want {
				if _, ok := got[id]; !ok {
					t.Errorf("missing %s in %v", id, ids(got))
				}
			}
		})
	}
}

func TestBleveIndex_DistinctValuesAndDelete(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	values, err := idx.DistinctValues(ctx, "journal")
	if err != nil {
		t.Fatalf("DistinctValues: %v", err)
	}
	if len(values) != 2 || values[0] != (ValueCount{Value: "Nature", Count: 2}) || values[1] != (ValueCount{Value: "Cell", Count: 1}) {
		t.Errorf("DistinctValues = %+v", values)
	}

	if err := idx.Delete(ctx, "NCT1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	values, err = idx.DistinctValues(ctx, "journal")
	if err != nil {
		t.Fatalf("DistinctValues: %v", err)
	}
	if len(values) != 2 || values[0].Count != 1 || values[1].Count != 1 {
		t.Errorf("after delete: %+v", values)
	}
	if n, _ := idx.DocCount(); n != 2 {
		t.Errorf("DocCount = %d, want 2", n)
	}

	if _, err := idx.DistinctValues(ctx, "year__num"); err == nil {
		t.Error("numeric shadow fields should not be listable")
	}
}

func TestBleveIndex_ReindexReplaces(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	doc := testDocs()[0]
	doc.Metadata.Journal = "Science"
	if err := idx.Index(ctx, doc); err != nil {
		t.Fatal(err)
	}
	got, _ := idx.ArticleIDs(ctx, models.QueryFilter{"journal": models.Eq("Nature")})
	if _, ok := got["PMC1"]; ok {
		t.Error("re-indexed document should no longer match its old journal")
	}
}

func TestSuggestValues(t *testing.T) {
	idx := openTestIndex(t)
	got, err := SuggestValues(context.Background(), idx, "journal", "Natrue", 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Value != "Nature" || got[0].Distance != 1 {
		t.Errorf("SuggestValues = %+v", got)
	}
}

func TestNewBleveIndex_ReopensExisting(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "sub", "metadata.bleve")
	ctx := context.Background()

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx.Index(ctx, testDocs()[1]); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(indexPath); err != nil {
		t.Fatalf("index path should exist: %v", err)
	}

	idx, err = NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex (reopen): %v", err)
	}
	defer idx.Close()
	got, err := idx.ArticleIDs(ctx, models.QueryFilter{"journal": models.Eq("Cell")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["PMC2"]; !ok {
		t.Error("reopened index lost its documents")
	}
}

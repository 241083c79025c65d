package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDocument_Validate(t *testing.T) {
	text := "BRCA1 is a gene."
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{"valid", Document{ID: "d1", Text: text, Annotations: []Annotation{{Category: CategoryGene, Text: "BRCA1", Start: 0, End: 5}}}, false},
		{"missing id", Document{Text: text}, true},
		{"empty text", Document{ID: "d1", Text: "   "}, true},
		{"span past end", Document{ID: "d1", Text: text, Annotations: []Annotation{{Start: 10, End: 99}}}, true},
		{"negative span", Document{ID: "d1", Text: text, Annotations: []Annotation{{Start: -1, End: 2}}}, true},
		{"empty span", Document{ID: "d1", Text: text, Annotations: []Annotation{{Start: 3, End: 3}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedInput) {
				t.Errorf("error %v should wrap ErrMalformedInput", err)
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	tests := map[string]Category{
		"Gene":            CategoryGene,
		"Species":         CategorySpecies,
		"CellLine":        CategoryCellLine,
		"DNAMutation":     CategoryVariant,
		"ProteinMutation": CategoryVariant,
		"Chemical":        CategoryChemical,
		"Disease":         CategoryDisease,
		"Strain":          CategoryStrain,
		"Genus":           CategoryGenus,
		"Cell-Line":       CategoryCellLine,
		"Unknown":         CategoryOther,
	}
	for in, want := range tests {
		if got := ParseCategory(in); got != want {
			t.Errorf("ParseCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCategoryFieldNameRoundTrip(t *testing.T) {
	for _, c := range CategoryOrder {
		got, ok := CategoryForField(c.FieldName())
		if !ok || got != c {
			t.Errorf("CategoryForField(%q) = %q, %v", c.FieldName(), got, ok)
		}
	}
}

func TestSourceMetadata_JSON(t *testing.T) {
	var doc Document
	data := `{"id":"PMC1","source":"pmc","text":"x","metadata":{"title":"T","journal":"Nature","year":"2023","pmcid":"PMC1","doi":"10.1/x"}}`
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		t.Fatal(err)
	}
	m := doc.Metadata
	if m.Title != "T" || m.Journal != "Nature" || m.Year != 2023 {
		t.Errorf("core = %+v", m)
	}
	if m.Extensions["pmcid"] != "PMC1" {
		t.Errorf("extensions = %v", m.Extensions)
	}
	ids := m.Identifiers(doc.Source)
	if ids["pmcid"] != "PMC1" || ids["doi"] != "10.1/x" {
		t.Errorf("Identifiers() = %v", ids)
	}
	flat := m.Flatten()
	if flat["year"] != 2023 || flat["journal"] != "Nature" {
		t.Errorf("Flatten() = %v", flat)
	}
}

func TestChunkRecord_Field(t *testing.T) {
	r := &ChunkRecord{
		ChunkID:    "c1",
		DocumentID: "d1",
		Source:     SourcePMC,
		Entities: EntityGroups{
			CategoryGene: {Texts: []string{"X"}, Identifiers: []string{"1234"}},
		},
		Metadata: map[string]interface{}{"journal": "Nature"},
	}
	if v, ok := r.Field("genes"); !ok || !Eq("1234").Match(v) {
		t.Errorf("genes = %v, %v", v, ok)
	}
	if _, ok := r.Field("diseases"); ok {
		t.Error("diseases should be absent")
	}
	if v, _ := r.Field("journal"); v != "Nature" {
		t.Errorf("journal = %v", v)
	}
	if v, _ := r.Field("document_id"); v != "d1" {
		t.Errorf("document_id = %v", v)
	}
}

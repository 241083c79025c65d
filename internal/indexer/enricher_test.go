package indexer

import (
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/litindex/internal/config"
	"github.com/hyperjump/litindex/internal/models"
)

func TestEnricher_SummaryThenGenes(t *testing.T) {
	text := "X is expressed in liver tissue of adult animals."
	doc := &models.Document{
		ID:      "d1",
		Text:    text,
		Summary: "Gene X regulates Y in mice.",
		Annotations: []models.Annotation{
			{Category: models.CategoryGene, Text: "X", Identifier: "1234", Start: 0, End: 1},
		},
	}
	chunks := NewChunker(50, 5).Chunk(doc)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	got := NewEnricher(150).Enrich(&chunks[0], doc)
	summaryAt := strings.Index(got, "Gene X regulates Y in mice.")
	genesAt := strings.Index(got, "Genes: X (1234)")
	if summaryAt < 0 || genesAt < 0 || summaryAt > genesAt {
		t.Fatalf("enriched text should list summary then genes, got:\n%s", got)
	}
	if !strings.HasSuffix(got, text) {
		t.Errorf("raw text should follow the prefix, got:\n%s", got)
	}
	if chunks[0].Text != text {
		t.Error("enrichment must not alter the raw chunk text")
	}
}

func TestEnricher_CategoryOrderAndDedup(t *testing.T) {
	chunk := &models.Chunk{
		Text: "irrelevant",
		Annotations: []models.Annotation{
			{Category: models.CategoryChemical, Text: "aspirin", Identifier: "D001241"},
			{Category: models.CategoryVariant, Text: "V600E"},
			{Category: models.CategoryDisease, Text: "melanoma", Identifier: "D008545"},
			{Category: models.CategoryGene, Text: "BRAF", Identifier: "673"},
			{Category: models.CategoryGene, Text: "B-Raf", Identifier: "673"},
			{Category: models.CategorySpecies, Text: "human", Identifier: "9606"},
			{Category: models.CategoryGene, Text: "kinase"},
			{Category: models.CategoryGene, Text: "Kinase"},
		},
	}
	got := NewEnricher(0).Enrich(chunk, &models.Document{})
	want := "Genes: BRAF (673); kinase\n" +
		"Species: human (9606)\n" +
		"Diseases: melanoma (D008545)\n" +
		"Chemicals: aspirin (D001241)\n" +
		"Variants: V600E\n" +
		"Text:\nirrelevant"
	if got != want {
		t.Errorf("Enrich() =\n%s\nwant\n%s", got, want)
	}
}

func TestEnricher_MissingSectionsOmitted(t *testing.T) {
	chunk := &models.Chunk{Text: "plain text"}
	if got := NewEnricher(10).Enrich(chunk, &models.Document{}); got != "plain text" {
		t.Errorf("Enrich() = %q, want raw text", got)
	}
	got := NewEnricher(10).Enrich(chunk, &models.Document{Summary: "short summary"})
	if got != "Summary: short summary\nText:\nplain text" {
		t.Errorf("Enrich() = %q", got)
	}
}

func TestEnricher_TruncatesSummary(t *testing.T) {
	chunk := &models.Chunk{Text: "t"}
	got := NewEnricher(3).Enrich(chunk, &models.Document{Summary: "one two three four five"})
	if !strings.HasPrefix(got, "Summary: one two three\n") {
		t.Errorf("Enrich() = %q", got)
	}
}

func TestEntities(t *testing.T) {
	chunk := &models.Chunk{Annotations: []models.Annotation{
		{Category: models.CategoryGene, Text: "TP53", Identifier: "7157"},
		{Category: models.CategoryGene, Text: "p53", Identifier: "7157"},
		{Category: models.CategoryGene, Text: "MDM2"},
	}}
	groups := Entities(chunk)
	g, ok := groups[models.CategoryGene]
	if !ok {
		t.Fatal("missing gene group")
	}
	if len(g.Texts) != 2 || g.Texts[0] != "TP53" || g.Texts[1] != "MDM2" {
		t.Errorf("texts = %v", g.Texts)
	}
	if len(g.Identifiers) != 1 || g.Identifiers[0] != "7157" {
		t.Errorf("identifiers = %v", g.Identifiers)
	}
	if _, ok := groups[models.CategorySpecies]; ok {
		t.Error("species group should be absent")
	}
}

func TestPreprocessor_Prepare(t *testing.T) {
	p, err := NewPreprocessor(config.DefaultUnwantedPassages, []string{"Genus"})
	if err != nil {
		t.Fatal(err)
	}
	doc := &models.Document{
		ID:   "d",
		Text: "Escherichia coli grows.",
		Annotations: []models.Annotation{
			{Category: "Genus", Text: "Escherichia", Start: 0, End: 11},
			{Category: "Species", Text: "Escherichia coli", Start: 0, End: 16},
		},
	}
	out, err := p.Prepare(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Annotations) != 1 || out.Annotations[0].Category != models.CategorySpecies {
		t.Errorf("annotations = %+v", out.Annotations)
	}
	if len(doc.Annotations) != 2 {
		t.Error("Prepare must not modify the input document")
	}
	if out.Source != models.SourcePMC {
		t.Errorf("source default = %q", out.Source)
	}

	ack := &models.Document{ID: "a", Text: "We thank everyone.", Metadata: models.NewSourceMetadata(map[string]interface{}{"section_type": "ACKNOWLEDGEMENTS"})}
	if _, err := p.Prepare(ack); !errors.Is(err, ErrUnwantedPassage) {
		t.Errorf("Prepare(acknowledgements) error = %v", err)
	}
	if _, err := p.Prepare(&models.Document{ID: "e", Text: ""}); !errors.Is(err, models.ErrMalformedInput) {
		t.Errorf("Prepare(empty) error = %v", err)
	}
}

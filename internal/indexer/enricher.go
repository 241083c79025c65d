package indexer

import (
	"strings"

	"github.com/hyperjump/litindex/internal/models"
)

// Enricher builds the text that gets embedded for a chunk: the document
// summary and the chunk's entities ahead of the raw window text.
type Enricher struct {
	summaryWords int
}

// NewEnricher creates an enricher that truncates summaries to summaryWords words (0 = no limit).
func NewEnricher(summaryWords int) *Enricher {
	return &Enricher{summaryWords: summaryWords}
}

// Enrich returns the enriched text for chunk. The chunk itself is not modified.
func (e *Enricher) Enrich(chunk *models.Chunk, doc *models.Document) string {
	var b strings.Builder
	if summary := truncateWords(doc.Summary, e.summaryWords); summary != "" {
		b.WriteString("Summary: ")
		b.WriteString(summary)
		b.WriteByte('\n')
	}
	for _, c := range models.CategoryOrder {
		names := displayNames(chunk, c)
		if len(names) == 0 {
			continue
		}
		b.WriteString(c.Label())
		b.WriteString(": ")
		b.WriteString(strings.Join(names, "; "))
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return chunk.Text
	}
	b.WriteString("Text:\n")
	b.WriteString(chunk.Text)
	return b.String()
}

// Entities groups the chunk's distinct annotations by category. Within a
// category, entities are deduplicated by normalized identifier when present,
// otherwise by case-folded surface text, in order of first appearance.
func Entities(chunk *models.Chunk) models.EntityGroups {
	groups := make(models.EntityGroups)
	for _, c := range models.CategoryOrder {
		ents := distinctEntities(chunk, c)
		if len(ents) == 0 {
			continue
		}
		var g models.EntityGroup
		for _, a := range ents {
			g.Texts = append(g.Texts, a.Text)
			if a.Normalized() {
				g.Identifiers = append(g.Identifiers, strings.TrimSpace(a.Identifier))
			}
		}
		groups[c] = g
	}
	return groups
}

func distinctEntities(chunk *models.Chunk, c models.Category) []models.Annotation {
	seen := make(map[string]bool)
	var out []models.Annotation
	for _, a := range chunk.Annotations {
		if a.Category != c || strings.TrimSpace(a.Text) == "" {
			continue
		}
		key := "t:" + strings.ToLower(strings.TrimSpace(a.Text))
		if a.Normalized() {
			key = "id:" + strings.TrimSpace(a.Identifier)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func displayNames(chunk *models.Chunk, c models.Category) []string {
	ents := distinctEntities(chunk, c)
	names := make([]string, 0, len(ents))
	for _, a := range ents {
		name := strings.TrimSpace(a.Text)
		if a.Normalized() {
			name += " (" + strings.TrimSpace(a.Identifier) + ")"
		}
		names = append(names, name)
	}
	return names
}

func truncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}

package indexer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperjump/litindex/internal/models"
)

// ErrUnwantedPassage marks a document whose passage type is excluded from indexing.
var ErrUnwantedPassage = errors.New("unwanted passage type")

// passageTypeKey is the metadata key carrying the BioC passage/section type.
const passageTypeKey = "section_type"

// Preprocessor validates and normalizes a document before chunking.
type Preprocessor struct {
	unwanted       []*regexp.Regexp
	dropCategories map[models.Category]bool
}

// NewPreprocessor compiles the unwanted passage patterns (case-insensitive)
// and records the annotation categories to ignore.
func NewPreprocessor(unwantedPassages []string, dropCategories []string) (*Preprocessor, error) {
	p := &Preprocessor{dropCategories: make(map[models.Category]bool)}
	for _, pat := range unwantedPassages {
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			return nil, fmt.Errorf("invalid passage pattern %q: %w", pat, err)
		}
		p.unwanted = append(p.unwanted, re)
	}
	for _, c := range dropCategories {
		p.dropCategories[models.ParseCategory(c)] = true
	}
	return p, nil
}

// Prepare returns a normalized copy of doc ready for chunking. It fails with
// ErrMalformedInput for invalid documents and ErrUnwantedPassage for excluded sections.
func (p *Preprocessor) Prepare(doc *models.Document) (*models.Document, error) {
	out := *doc
	out.Annotations = append([]models.Annotation(nil), doc.Annotations...)
	out.Normalize()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	if v, ok := out.Metadata.Get(passageTypeKey); ok {
		section := strings.TrimSpace(models.FormatValue(v))
		for _, re := range p.unwanted {
			if re.MatchString(section) {
				return nil, fmt.Errorf("%w: document %s section %q", ErrUnwantedPassage, out.ID, section)
			}
		}
	}
	if len(p.dropCategories) > 0 {
		kept := out.Annotations[:0]
		for _, a := range out.Annotations {
			if !p.dropCategories[a.Category] {
				kept = append(kept, a)
			}
		}
		out.Annotations = kept
	}
	return &out, nil
}

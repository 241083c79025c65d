// Package models defines core data structures for annotated documents, chunks, queries, and results.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Source tags understood by the pipeline. Unknown tags are accepted as-is.
const (
	SourcePMC           = "pmc"
	SourceClinicalTrial = "clinical_trial"
	SourceInternalFile  = "internal_file"
)

// Document is an annotated document produced by the upstream extraction and NER stages.
// A reprocessed document supersedes the previous version with the same ID.
type Document struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	Name        string         `json:"name,omitempty"`
	Type        string         `json:"type,omitempty"`
	SourcePath  string         `json:"source_path,omitempty"`
	SizeBytes   int64          `json:"size_bytes,omitempty"`
	Text        string         `json:"text"`
	Summary     string         `json:"summary,omitempty"`
	Annotations []Annotation   `json:"annotations,omitempty"`
	Metadata    SourceMetadata `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

// Annotation is a typed entity mention. Start and End are byte offsets into
// Document.Text (half-open). An empty Identifier means the mention is unnormalized.
type Annotation struct {
	Category   Category `json:"category"`
	Text       string   `json:"text"`
	Identifier string   `json:"identifier,omitempty"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
}

// Normalized reports whether the annotation carries a normalized identifier.
func (a Annotation) Normalized() bool {
	id := strings.TrimSpace(a.Identifier)
	return id != "" && id != "-"
}

// Overlaps reports whether the annotation span intersects [start, end).
func (a Annotation) Overlaps(start, end int) bool {
	return a.Start < end && a.End > start
}

// Title returns the display title: metadata title, then name, then ID.
func (d *Document) Title() string {
	if d.Metadata.Title != "" {
		return d.Metadata.Title
	}
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Validate rejects documents that cannot be indexed. Returned errors wrap ErrMalformedInput.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: document id is required", ErrMalformedInput)
	}
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("%w: document %s has empty text", ErrMalformedInput, d.ID)
	}
	for i, a := range d.Annotations {
		if a.Start < 0 || a.End > len(d.Text) || a.Start >= a.End {
			return fmt.Errorf("%w: document %s annotation %d span [%d,%d) out of bounds (text length %d)",
				ErrMalformedInput, d.ID, i, a.Start, a.End, len(d.Text))
		}
	}
	return nil
}

// Normalize fills derived fields: canonical categories, source default, and name.
func (d *Document) Normalize() {
	d.Source = strings.ToLower(strings.TrimSpace(d.Source))
	if d.Source == "" {
		d.Source = SourcePMC
	}
	if d.Name == "" {
		d.Name = d.ID
	}
	for i := range d.Annotations {
		d.Annotations[i].Category = ParseCategory(string(d.Annotations[i].Category))
	}
}

// Package extract pulls plain text out of internal files so they can be
// indexed as internal_file documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/litindex/internal/models"
)

// Extracted is the text of one file and the format it was read as.
type Extracted struct {
	Text     string
	FileType string
}

type extractFunc func(content []byte) (string, error)

var extractors = map[string]struct {
	fileType string
	fn       extractFunc
}{
	".pdf":  {"pdf", extractPDF},
	".docx": {"docx", extractDOCX},
	".xlsx": {"xlsx", extractExcel},
	".pptx": {"pptx", extractPPTX},
	".odt":  {"odt", extractWithCat},
	".rtf":  {"rtf", extractWithCat},
	".odp":  {"odp", extractOpenDocument},
	".ods":  {"ods", extractOpenDocument},
	".txt":  {"text", extractPlain},
	".md":   {"markdown", extractPlain},
	".rst":  {"text", extractPlain},
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supports reports whether ext (with leading dot) has a dedicated extractor.
func Supports(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// Extensions lists the extensions with a dedicated extractor.
func Extensions() []string {
	out := make([]string, 0, len(extractors))
	for ext := range extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and returns its text.
func (e *Extractor) Extract(path string) (*Extracted, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content according to ext (e.g. ".pdf").
// Unknown extensions are read as UTF-8 text. A corrupt file fails with
// models.ErrMalformedInput.
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Extracted, error) {
	ext = strings.ToLower(ext)
	x, ok := extractors[ext]
	if !ok {
		x.fileType, x.fn = strings.TrimPrefix(ext, "."), extractPlain
		if x.fileType == "" {
			x.fileType = "text"
		}
	}
	text, err := x.fn(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrMalformedInput, x.fileType, err)
	}
	return &Extracted{Text: strings.TrimSpace(text), FileType: x.fileType}, nil
}

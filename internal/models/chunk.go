package models

import "time"

// Chunk is a bounded text window derived from exactly one document.
// Start and End are byte offsets of the window in the document text.
type Chunk struct {
	ID           string       `json:"id"`
	DocumentID   string       `json:"document_id"`
	Sequence     int          `json:"sequence"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	Text         string       `json:"text"`
	EnrichedText string       `json:"enriched_text,omitempty"`
	Start        int          `json:"start"`
	End          int          `json:"end"`
	TokenCount   int          `json:"token_count"`
	Annotations  []Annotation `json:"annotations,omitempty"`
	Source       string       `json:"source"`
	CreatedAt    time.Time    `json:"created_at"`
}

// EntityGroup holds the distinct entities of one category: display surface
// forms and the normalized identifiers that were present.
type EntityGroup struct {
	Texts       []string `json:"texts"`
	Identifiers []string `json:"identifiers,omitempty"`
}

// EntityGroups maps categories to their entities.
type EntityGroups map[Category]EntityGroup

// ChunkRecord is the persisted IndexStore payload for one chunk.
// A record is only searchable once Vector is set.
type ChunkRecord struct {
	ChunkID         string                 `json:"chunk_id"`
	DocumentID      string                 `json:"document_id"`
	Name            string                 `json:"chunk_name"`
	Sequence        int                    `json:"chunk_sequence"`
	ChunkType       string                 `json:"chunk_type"`
	Source          string                 `json:"source"`
	Text            string                 `json:"chunk_text"`
	EnrichedText    string                 `json:"merged_text"`
	Length          int                    `json:"chunk_length"`
	TokenCount      int                    `json:"token_count"`
	Offset          int                    `json:"chunk_offset"`
	AnnotationCount int                    `json:"chunk_annotations_count"`
	Entities        EntityGroups           `json:"entities,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt       time.Time              `json:"chunk_creation_dt"`
	Vector          []float32              `json:"vector"`
}

// Reserved filter fields. The chunk fields vary within one article and are
// only answerable from records; the rest are per article.
const (
	FieldChunkID       = "chunk_id"
	FieldChunkType     = "chunk_type"
	FieldChunkSequence = "chunk_sequence"
	FieldDocumentID    = "document_id"
	FieldSource        = "source"
	FieldDocumentType  = "document_type"
)

// IsChunkField reports whether key names a chunk-level field.
func IsChunkField(key string) bool {
	switch key {
	case FieldChunkID, FieldChunkType, FieldChunkSequence:
		return true
	}
	return false
}

// Field resolves a filterable field: record attributes first, then entity
// categories by field name (e.g. "genes"), then merged document metadata.
func (r *ChunkRecord) Field(key string) (interface{}, bool) {
	switch key {
	case FieldChunkID:
		return r.ChunkID, true
	case FieldDocumentID:
		return r.DocumentID, true
	case FieldSource:
		return r.Source, true
	case FieldChunkType:
		return r.ChunkType, true
	case FieldChunkSequence:
		return r.Sequence, true
	}
	if c, ok := CategoryForField(key); ok {
		g, ok := r.Entities[c]
		if !ok {
			return nil, false
		}
		vals := make([]string, 0, len(g.Texts)+len(g.Identifiers))
		vals = append(vals, g.Texts...)
		vals = append(vals, g.Identifiers...)
		return vals, true
	}
	v, ok := r.Metadata[key]
	return v, ok
}

// VectorField names the chunk field whose embedding is stored.
const VectorField = "merged_text"

// ChunkRow is the catalog's bookkeeping row for a chunk. It carries no text,
// annotations or vector; those live in the IndexStore only.
type ChunkRow struct {
	ChunkID         string    `json:"chunk_id"`
	DocumentID      string    `json:"document_id"`
	Sequence        int       `json:"chunk_sequence"`
	ChunkType       string    `json:"chunk_type"`
	VectorField     string    `json:"vector_field_name"`
	AnnotationCount int       `json:"chunk_annotations_count"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"chunk_creation_dt"`
}

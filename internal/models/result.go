package models

// ScoredChunk is a chunk record matched by a query, with its similarity score (higher is better).
type ScoredChunk struct {
	Record *ChunkRecord
	Score  float64
}

// DocumentID returns the owning article's ID.
func (s ScoredChunk) DocumentID() string { return s.Record.DocumentID }

// ArticleResult groups the best chunks of one article. Chunks are ordered by score descending.
type ArticleResult struct {
	DocumentID string
	Chunks     []ScoredChunk
	Document   *Document
}

// BestScore is the score of the top chunk, or 0 for an empty group.
func (a ArticleResult) BestScore() float64 {
	if len(a.Chunks) == 0 {
		return 0
	}
	return a.Chunks[0].Score
}

// ArticleResponse is the serialized form of an ArticleResult.
type ArticleResponse struct {
	DocumentID  string                 `json:"document_id"`
	Title       string                 `json:"title"`
	Source      string                 `json:"source"`
	Identifiers map[string]string      `json:"identifiers,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Score       float64                `json:"score"`
	Chunks      []ChunkResponse        `json:"chunks"`
}

// ChunkResponse is the serialized form of a ScoredChunk.
type ChunkResponse struct {
	ChunkID  string  `json:"chunk_id"`
	Sequence int     `json:"sequence"`
	Text     string  `json:"chunk_text"`
	Score    float64 `json:"score"`
}

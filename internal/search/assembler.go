package search

import (
	"github.com/hyperjump/litindex/internal/models"
)

// Assemble converts ranked article groups into their response form. Document
// metadata comes from the attached catalog record when present, otherwise
// from the metadata copied onto the top chunk.
func Assemble(results []models.ArticleResult) []models.ArticleResponse {
	out := make([]models.ArticleResponse, 0, len(results))
	for _, r := range results {
		resp := models.ArticleResponse{
			DocumentID: r.DocumentID,
			Score:      r.BestScore(),
			Chunks:     make([]models.ChunkResponse, 0, len(r.Chunks)),
		}
		switch {
		case r.Document != nil:
			resp.Title = r.Document.Title()
			resp.Source = r.Document.Source
			resp.Metadata = r.Document.Metadata.Flatten()
			resp.Identifiers = r.Document.Metadata.Identifiers(r.Document.Source)
		case len(r.Chunks) > 0:
			top := r.Chunks[0].Record
			resp.Source = top.Source
			resp.Metadata = top.Metadata
			resp.Title = models.FormatValue(top.Metadata["title"])
			if resp.Title == "" {
				resp.Title = r.DocumentID
			}
			resp.Identifiers = identifiersFrom(top.Metadata, top.Source)
		default:
			resp.Title = r.DocumentID
		}
		for _, c := range r.Chunks {
			resp.Chunks = append(resp.Chunks, models.ChunkResponse{
				ChunkID:  c.Record.ChunkID,
				Sequence: c.Record.Sequence,
				Text:     c.Record.Text,
				Score:    c.Score,
			})
		}
		out = append(out, resp)
	}
	return out
}

func identifiersFrom(meta map[string]interface{}, source string) map[string]string {
	ids := make(map[string]string)
	for _, k := range models.IdentifierKeys(source) {
		if s := models.FormatValue(meta[k]); s != "" {
			ids[k] = s
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

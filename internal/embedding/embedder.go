// Package embedding turns text into fixed-dimension vectors. Callers depend on
// the Embedder capability; concrete models, caching, rate limiting and batching
// are layered behind it.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must return
// the same vector for the same text, and EmbedBatch results must not depend
// on batch composition or order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// embedEach implements EmbedBatch for embedders without a native batch call.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

package embedding

import (
	"context"
	"strings"
	"testing"
)

func BenchmarkHashEmbedder_Embed(b *testing.B) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "BRAF V600E mutations drive melanoma proliferation")
	}
}

func BenchmarkBatcher_EmbedChunks(b *testing.B) {
	batcher := NewBatcher(NewHashEmbedder(384), WithBatchSize(16), WithConcurrency(4))
	texts := make([]string, 64)
	for i := range texts {
		texts[i] = strings.Repeat("tumour suppressor TP53 regulates apoptosis ", 1+i%8)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = batcher.EmbedAll(ctx, texts)
	}
}

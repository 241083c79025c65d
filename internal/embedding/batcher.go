package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/litindex/internal/models"
	"github.com/hyperjump/litindex/pkg/utils"
	"go.uber.org/zap"
)

// Result is the outcome of embedding one text. Exactly one of Vector and Err is set.
type Result struct {
	Vector []float32
	Err    error
}

// Batcher embeds many texts through an Embedder: fixed-size batches, a bound
// on concurrent batches, bounded retries, and isolation of failing texts so
// one bad input does not fail its siblings.
type Batcher struct {
	embedder    Embedder
	batchSize   int
	concurrency int
	retry       utils.RetryPolicy
	logger      *zap.Logger
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithBatchSize sets the number of texts per EmbedBatch call.
func WithBatchSize(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithConcurrency sets how many batches may be in flight at once.
func WithConcurrency(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRetryPolicy sets the retry policy for each call.
func WithRetryPolicy(p utils.RetryPolicy) BatcherOption {
	return func(b *Batcher) { b.retry = p }
}

// WithLogger sets a logger for batch failures.
func WithLogger(l *zap.Logger) BatcherOption {
	return func(b *Batcher) { b.logger = l }
}

// NewBatcher creates a batcher over e. Defaults: 32 texts per batch, 4 batches in flight.
func NewBatcher(e Embedder, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		embedder:    e,
		batchSize:   32,
		concurrency: 4,
		retry:       utils.DefaultRetryPolicy,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dimensions returns the embedder's dimension.
func (b *Batcher) Dimensions() int { return b.embedder.Dimensions() }

// EmbedOne embeds a single text with retries. Failures wrap models.ErrUnavailable.
func (b *Batcher) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := utils.Retry(ctx, b.retry, func(ctx context.Context) error {
		v, err := b.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		if err := b.checkDims(v); err != nil {
			return utils.Permanent(err)
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding: %w", models.ErrUnavailable, err)
	}
	return vec, nil
}

// EmbedAll embeds texts and returns one Result per text, aligned with the input.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup
	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				for i := start; i < end; i++ {
					results[i] = Result{Err: fmt.Errorf("%w: %w", models.ErrUnavailable, ctx.Err())}
				}
				return
			}
			defer func() { <-sem }()
			b.embedRange(ctx, texts, results, start, end)
		}(start, end)
	}
	wg.Wait()
	return results
}

func (b *Batcher) embedRange(ctx context.Context, texts []string, results []Result, start, end int) {
	batch := texts[start:end]
	var vecs [][]float32
	err := utils.Retry(ctx, b.retry, func(ctx context.Context) error {
		v, err := b.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return err
		}
		if len(v) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(v), len(batch))
		}
		for _, x := range v {
			if err := b.checkDims(x); err != nil {
				return err
			}
		}
		vecs = v
		return nil
	})
	if err == nil {
		for i, v := range vecs {
			results[start+i] = Result{Vector: v}
		}
		return
	}
	b.logger.Warn("embedding batch failed, retrying texts individually",
		zap.Int("batch_start", start), zap.Int("batch_size", len(batch)), zap.Error(err))
	for i := start; i < end; i++ {
		v, err := b.EmbedOne(ctx, texts[i])
		results[i] = Result{Vector: v, Err: err}
	}
}

func (b *Batcher) checkDims(v []float32) error {
	if want := b.embedder.Dimensions(); len(v) != want {
		return fmt.Errorf("embedding has dimension %d, expected %d", len(v), want)
	}
	return nil
}

// Package indexer turns annotated documents into enriched, embedded chunks and keeps
// the vector store, catalog, and metadata index in step.
package indexer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hyperjump/litindex/internal/models"
)

// ChunkTypeSlidingWindow names the windowing strategy in chunk records.
const ChunkTypeSlidingWindow = "sliding_window"

// tokensPerWord estimates subword tokens for one whitespace word.
const tokensPerWord = 1.34

var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("litindex.chunk"))

// ChunkID is the stable chunk identifier for (document, sequence).
func ChunkID(docID string, seq int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(docID+":"+strconv.Itoa(seq))).String()
}

// Chunker splits document text into overlapping token windows. Tokens are
// whitespace-delimited. Window ends snap back to a sentence or paragraph
// break when one is within the snap tolerance, and never fall inside an
// annotation span.
type Chunker struct {
	maxTokens     int
	overlap       int
	snapTolerance int
	// summary reservation shrinks windows to leave room for the enrichment prefix
	reserveSummary bool
	summaryWords   int
	minTokens      int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithSnapTolerance sets how many tokens before the limit a break may be found.
func WithSnapTolerance(n int) ChunkerOption {
	return func(c *Chunker) {
		if n >= 0 {
			c.snapTolerance = n
		}
	}
}

// WithSummaryReserve shrinks windows by the token cost of a summary of up to
// summaryWords words, never below minTokens.
func WithSummaryReserve(summaryWords, minTokens int) ChunkerOption {
	return func(c *Chunker) {
		c.reserveSummary = true
		c.summaryWords = summaryWords
		c.minTokens = minTokens
	}
}

// NewChunker creates a chunker with the given window size and overlap (in tokens).
func NewChunker(maxTokens, overlap int, opts ...ChunkerOption) *Chunker {
	if maxTokens < 1 {
		maxTokens = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxTokens {
		overlap = maxTokens - 1
	}
	c := &Chunker{
		maxTokens:     maxTokens,
		overlap:       overlap,
		snapTolerance: maxTokens / 5,
		minTokens:     1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type token struct {
	start, end int
}

type window struct {
	first, last int // token range [first, last)
	start, end  int // byte range [start, end)
}

// Chunk splits the document into chunks ordered by sequence. Identical input
// always yields an identical sequence. Empty text yields no chunks.
// CreatedAt and EnrichedText are left for the caller.
func (c *Chunker) Chunk(doc *models.Document) []models.Chunk {
	toks := tokenize(doc.Text)
	if len(toks) == 0 {
		return nil
	}
	spans := sortedAnnotations(doc.Annotations)
	wins := c.windows(doc.Text, toks, spans, c.effectiveMaxTokens(doc))
	chunks := make([]models.Chunk, 0, len(wins))
	for seq, w := range wins {
		chunks = append(chunks, models.Chunk{
			ID:          ChunkID(doc.ID, seq),
			DocumentID:  doc.ID,
			Sequence:    seq,
			Name:        fmt.Sprintf("%s_chunk_%d", doc.ID, seq),
			Type:        ChunkTypeSlidingWindow,
			Text:        doc.Text[w.start:w.end],
			Start:       w.start,
			End:         w.end,
			TokenCount:  w.last - w.first,
			Annotations: annotationsIn(spans, w.start, w.end),
			Source:      doc.Source,
		})
	}
	return chunks
}

func (c *Chunker) effectiveMaxTokens(doc *models.Document) int {
	if !c.reserveSummary || strings.TrimSpace(doc.Summary) == "" {
		return c.maxTokens
	}
	words := len(strings.Fields(doc.Summary))
	if c.summaryWords > 0 && words > c.summaryWords {
		words = c.summaryWords
	}
	n := c.maxTokens - int(math.Ceil(float64(words)*tokensPerWord))
	if n < c.minTokens {
		n = c.minTokens
	}
	if n <= c.overlap {
		n = c.overlap + 1
	}
	return n
}

func (c *Chunker) windows(text string, toks []token, spans []models.Annotation, maxTokens int) []window {
	n := len(toks)
	var out []window
	first := 0
	for {
		last := c.boundary(text, toks, first, maxTokens)
		last = pushPastSpans(toks, spans, last)
		w := window{first: first, last: last, start: toks[first].start, end: len(text)}
		if len(out) == 0 {
			w.start = 0
		}
		if last < n {
			w.end = toks[last].start
		}
		out = append(out, w)
		if last >= n {
			return out
		}
		next := last - c.overlap
		if next <= first {
			next = first + 1
		}
		first = skipSpanStarts(toks, spans, next, last)
	}
}

// boundary returns the exclusive token end of the window starting at first.
func (c *Chunker) boundary(text string, toks []token, first, maxTokens int) int {
	limit := first + maxTokens
	if limit >= len(toks) {
		return len(toks)
	}
	lo := limit - c.snapTolerance
	if floor := first + c.overlap + 1; lo < floor {
		lo = floor
	}
	for b := limit; b >= lo; b-- {
		if breakBefore(text, toks, b) {
			return b
		}
	}
	return limit
}

// pushPastSpans moves an end boundary forward until it does not fall inside any span.
func pushPastSpans(toks []token, spans []models.Annotation, b int) int {
	for b < len(toks) {
		pos := toks[b].start
		moved := false
		for _, a := range spans {
			if a.Start >= pos {
				break
			}
			if a.End > pos {
				for b < len(toks) && toks[b].start < a.End {
					b++
				}
				moved = true
				break
			}
		}
		if !moved {
			return b
		}
	}
	return b
}

// skipSpanStarts moves a start boundary forward (at most to limit) so the
// window does not begin inside a span. The skipped span lies wholly in the
// previous window because its end boundary was already pushed clear.
func skipSpanStarts(toks []token, spans []models.Annotation, next, limit int) int {
	for next < limit {
		pos := toks[next].start
		moved := false
		for _, a := range spans {
			if a.Start >= pos {
				break
			}
			if a.End > pos {
				for next < limit && toks[next].start < a.End {
					next++
				}
				moved = true
				break
			}
		}
		if !moved {
			return next
		}
	}
	return next
}

func breakBefore(text string, toks []token, b int) bool {
	if b <= 0 || b >= len(toks) {
		return false
	}
	gap := text[toks[b-1].end:toks[b].start]
	if strings.Count(gap, "\n") >= 2 {
		return true
	}
	return endsSentence(text[toks[b-1].start:toks[b-1].end])
}

var abbreviations = map[string]bool{
	"e.g.": true, "i.e.": true, "al.": true, "fig.": true, "figs.": true,
	"vs.": true, "ref.": true, "refs.": true, "approx.": true, "no.": true,
}

func endsSentence(word string) bool {
	w := strings.TrimRight(word, `)]}"'`)
	if w == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(w)
	if last != '.' && last != '!' && last != '?' {
		return false
	}
	if last == '.' {
		lw := strings.ToLower(w)
		if abbreviations[lw] {
			return false
		}
		// initials such as "J."
		if r, size := utf8.DecodeRuneInString(w); size+1 == len(w) && unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func tokenize(text string) []token {
	var toks []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				toks = append(toks, token{start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		toks = append(toks, token{start: start, end: len(text)})
	}
	return toks
}

func sortedAnnotations(in []models.Annotation) []models.Annotation {
	out := append([]models.Annotation(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

func annotationsIn(spans []models.Annotation, start, end int) []models.Annotation {
	var out []models.Annotation
	for _, a := range spans {
		if a.Start >= end {
			break
		}
		if a.Overlaps(start, end) {
			out = append(out, a)
		}
	}
	return out
}

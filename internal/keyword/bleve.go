package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/litindex/internal/models"
)

// numericSuffix marks the numeric shadow of a metadata field: "year" holds
// the exact string form, "year__num" the number for range queries.
const numericSuffix = "__num"

// termPrefix is prepended to every indexed string. Dynamic mapping would
// otherwise turn date-like strings such as "2021-05-01" into datetime fields.
const termPrefix = "="

// Reserved fields written for every document.
const (
	fieldDocumentID = models.FieldDocumentID
	fieldSource     = models.FieldSource
	fieldType       = models.FieldDocumentType
)

// BleveIndex implements MetadataIndex using Bleve. All strings are indexed
// with the keyword analyzer, so matching is exact and case-sensitive.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryBleveIndex creates an in-memory index for tests and ephemeral runs.
func NewMemoryBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keywordanalyzer.Name
	im.StoreDynamic = false
	im.IndexDynamic = true

	docMapping := bleve.NewDocumentMapping()
	idMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt(fieldDocumentID, idMapping)
	docMapping.AddFieldMappingsAt(fieldSource, bleve.NewKeywordFieldMapping())
	im.DefaultMapping = docMapping
	return im
}

// Index indexes the document's flattened metadata, its entity values per
// category field, and the reserved fields.
func (b *BleveIndex) Index(ctx context.Context, doc *models.Document) error {
	entry := make(map[string]interface{})
	for k, v := range doc.Metadata.Flatten() {
		addField(entry, k, v)
	}
	entities := make(map[string][]string)
	for _, a := range doc.Annotations {
		text := strings.TrimSpace(a.Text)
		if text == "" {
			continue
		}
		field := a.Category.FieldName()
		entities[field] = append(entities[field], text)
		if a.Normalized() {
			entities[field] = append(entities[field], strings.TrimSpace(a.Identifier))
		}
	}
	for field, vals := range entities {
		addField(entry, field, dedupe(vals))
	}
	entry[fieldDocumentID] = termPrefix + doc.ID
	entry[fieldSource] = termPrefix + doc.Source
	if doc.Type != "" {
		entry[fieldType] = termPrefix + doc.Type
	}
	if err := b.index.Index(doc.ID, entry); err != nil {
		return fmt.Errorf("failed to index metadata of %s: %w", doc.ID, err)
	}
	return nil
}

// addField writes the string forms of v at key and any numeric forms at key__num.
func addField(entry map[string]interface{}, key string, v interface{}) {
	var strs []string
	var nums []float64
	for _, s := range models.Scalars(v) {
		if str := models.FormatValue(s); str != "" {
			strs = append(strs, termPrefix+str)
		}
		if n, ok := models.ToFloat(s); ok {
			nums = append(nums, n)
		}
	}
	if len(strs) > 0 {
		entry[key] = strs
	}
	if len(nums) > 0 {
		entry[key+numericSuffix] = nums
	}
}

func dedupe(vals []string) []string {
	seen := make(map[string]bool, len(vals))
	out := vals[:0]
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ArticleIDs runs the filter as a conjunction of per-field queries. An empty
// filter matches every indexed document.
func (b *BleveIndex) ArticleIDs(ctx context.Context, filter models.QueryFilter) (map[string]struct{}, error) {
	total, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count metadata index: %w", err)
	}
	out := make(map[string]struct{})
	if total == 0 {
		return out, nil
	}

	var q blevequery.Query = bleve.NewMatchAllQuery()
	if !filter.Empty() {
		clauses := make([]blevequery.Query, 0, len(filter))
		for _, field := range filter.Fields() {
			clauses = append(clauses, fieldQuery(field, filter[field]))
		}
		q = bleve.NewConjunctionQuery(clauses...)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = int(total)
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("metadata predicate search failed: %w", err)
	}
	for _, hit := range results.Hits {
		out[hit.ID] = struct{}{}
	}
	return out, nil
}

// fieldQuery builds the predicate for one field: any listed value (exact, or
// numerically equal), restricted to the range when one is given.
func fieldQuery(field string, ff models.FieldFilter) blevequery.Query {
	var rangeQ blevequery.Query
	if ff.Range != nil {
		rangeQ = rangeQuery(field+numericSuffix, ff.Range)
	}
	if len(ff.Values) == 0 {
		return rangeQ
	}
	alternatives := make([]blevequery.Query, 0, 2*len(ff.Values))
	for _, v := range ff.Values {
		tq := bleve.NewTermQuery(termPrefix + v)
		tq.SetField(field)
		alternatives = append(alternatives, tq)
		if n, ok := models.ToFloat(v); ok {
			incl := true
			nq := bleve.NewNumericRangeInclusiveQuery(&n, &n, &incl, &incl)
			nq.SetField(field + numericSuffix)
			alternatives = append(alternatives, nq)
		}
	}
	valuesQ := bleve.NewDisjunctionQuery(alternatives...)
	if rangeQ == nil {
		return valuesQ
	}
	return bleve.NewConjunctionQuery(valuesQ, rangeQ)
}

func rangeQuery(field string, r *models.Range) blevequery.Query {
	var lo, hi *float64
	var loIncl, hiIncl *bool
	t, f := true, false
	if r.Gte != nil {
		lo, loIncl = r.Gte, &t
	}
	if r.Gt != nil && (lo == nil || *r.Gt >= *lo) {
		lo, loIncl = r.Gt, &f
	}
	if r.Lte != nil {
		hi, hiIncl = r.Lte, &t
	}
	if r.Lt != nil && (hi == nil || *r.Lt <= *hi) {
		hi, hiIncl = r.Lt, &f
	}
	q := bleve.NewNumericRangeInclusiveQuery(lo, hi, loIncl, hiIncl)
	q.SetField(field)
	return q
}

// DistinctValues walks the field dictionary and reports live document counts,
// ordered by count descending then value.
func (b *BleveIndex) DistinctValues(ctx context.Context, field string) ([]ValueCount, error) {
	if field == "" || strings.HasSuffix(field, numericSuffix) {
		return nil, fmt.Errorf("%w: field %q cannot be listed", models.ErrMalformedInput, field)
	}
	dict, err := b.index.FieldDict(field)
	if err != nil {
		return nil, fmt.Errorf("failed to read field dictionary of %s: %w", field, err)
	}
	var terms []string
	for {
		entry, err := dict.Next()
		if err != nil {
			_ = dict.Close()
			return nil, fmt.Errorf("failed to read field dictionary of %s: %w", field, err)
		}
		if entry == nil {
			break
		}
		terms = append(terms, entry.Term)
	}
	if err := dict.Close(); err != nil {
		return nil, err
	}

	// Dictionary counts can include deleted documents until segments merge,
	// so each term is recounted against live documents.
	out := make([]ValueCount, 0, len(terms))
	for _, term := range terms {
		tq := bleve.NewTermQuery(term)
		tq.SetField(field)
		req := bleve.NewSearchRequest(tq)
		req.Size = 0
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s=%s: %w", field, term, err)
		}
		if res.Total > 0 {
			out = append(out, ValueCount{Value: strings.TrimPrefix(term, termPrefix), Count: int(res.Total)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, docID string) error {
	return b.index.Delete(docID)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

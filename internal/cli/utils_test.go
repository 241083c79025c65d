package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/litindex/internal/indexer"
	"github.com/hyperjump/litindex/internal/keyword"
	"github.com/hyperjump/litindex/internal/models"
)

func sampleArticles() []models.ArticleResponse {
	return []models.ArticleResponse{
		{
			DocumentID:  "PMC100",
			Title:       "X and Y",
			Source:      "pmc",
			Identifiers: map[string]string{"pmid": "999", "pmcid": "PMC100"},
			Score:       0.91,
			Chunks: []models.ChunkResponse{
				{ChunkID: "c0", Sequence: 0, Text: "X is expressed\nin the liver.", Score: 0.91},
			},
		},
		{DocumentID: "PMC200", Source: "pmc", Score: 0.5},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "gene x", sampleArticles(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded SearchResults
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != "gene x" || len(decoded.Articles) != 2 || decoded.Articles[0].Identifiers["pmid"] != "999" {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteSearchResults_JSON_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "nothing", nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"articles": []`) {
		t.Errorf("empty results should encode as an empty array:\n%s", buf.String())
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "gene x", sampleArticles(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{
		"Found 2 article(s)",
		"1. ",
		"X and Y",
		"PMC100 | pmc | score 0.9100",
		"pmcid: PMC100, pmid: 999",
		"in the liver.",
		"2. ",
		"(untitled)",
	} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, "expressed\nin") {
		t.Error("chunk text should be collapsed onto one line")
	}
}

func TestWriteSearchResults_textEmpty(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteSearchResults(&buf, "zzz", nil, OutputText)
	if !strings.Contains(buf.String(), `No matching articles for "zzz"`) {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteReport(t *testing.T) {
	report := &indexer.Report{
		Indexed:   []string{"a", "b"},
		Unchanged: []string{"c"},
		Chunks:    7,
		Skipped:   []indexer.Failure{{DocumentID: "d", Reason: "malformed input: empty text"}},
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Indexed 2 document(s), 7 chunk(s), 1 unchanged, 1 skipped", "skipped d: malformed input: empty text"} {
		if !strings.Contains(out, sub) {
			t.Errorf("report missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteValues(t *testing.T) {
	var buf bytes.Buffer
	values := []keyword.ValueCount{{Value: "Nature", Count: 2}, {Value: "Cell", Count: 1}}
	if err := WriteValues(&buf, "journal", values, OutputText); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "Nature  2\nCell    1\n"; got != want {
		t.Errorf("WriteValues() = %q, want %q", got, want)
	}

	buf.Reset()
	_ = WriteValues(&buf, "journal", nil, OutputJSON)
	if !strings.Contains(buf.String(), `"values": []`) {
		t.Errorf("json: %s", buf.String())
	}
}

func TestWriteSuggestions(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteSuggestions(&buf, "journal", "Natrue", []keyword.Suggestion{{Value: "Nature", Distance: 1, Count: 2}}, OutputText)
	if !strings.Contains(buf.String(), "Nature (2 document(s), distance 1)") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	status := map[string]interface{}{
		"documents":           float64(12),
		"watched_directories": []interface{}{"/a", "/b"},
		"config":              map[string]interface{}{"metric": "cosine"},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	want := "config:\n  metric: cosine\ndocuments: 12\nwatched_directories: /a, /b\n"
	if buf.String() != want {
		t.Errorf("WriteStatus() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestParseFilters(t *testing.T) {
	f, err := ParseFilters([]string{"journal=Nature,Cell", "year=2020..2023", "source=pmc", "source=ct"})
	if err != nil {
		t.Fatal(err)
	}
	if got := f["journal"].Values; len(got) != 2 || got[0] != "Nature" || got[1] != "Cell" {
		t.Errorf("journal = %v", got)
	}
	r := f["year"].Range
	if r == nil || *r.Gte != 2020 || *r.Lte != 2023 {
		t.Errorf("year range = %+v", r)
	}
	if got := f["source"].Values; len(got) != 2 {
		t.Errorf("repeated key should widen values, got %v", got)
	}

	open, err := ParseFilters([]string{"year=2021.."})
	if err != nil {
		t.Fatal(err)
	}
	if r := open["year"].Range; r.Gte == nil || *r.Gte != 2021 || r.Lte != nil {
		t.Errorf("open range = %+v", r)
	}

	if f, err := ParseFilters(nil); err != nil || f != nil {
		t.Errorf("ParseFilters(nil) = %v, %v", f, err)
	}
}

func TestParseFilters_Invalid(t *testing.T) {
	for _, pairs := range [][]string{
		{"journal"},
		{"=Nature"},
		{"journal="},
		{"year=..", "x=y"},
		{"year=abc..2020"},
		{"year=2024..2020"},
		{"year=2020..2021", "year=2022"},
		{"journal=,"},
	} {
		if _, err := ParseFilters(pairs); !errors.Is(err, models.ErrMalformedInput) {
			t.Errorf("ParseFilters(%q) error = %v, want malformed input", pairs, err)
		}
	}
}

func TestNewProgress_Lines(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress(&buf, false)
	progress(1, 2, "/in/a.json")
	progress(2, 2, "/in/b.txt")
	if got, want := buf.String(), "[1/2] /in/a.json\n[2/2] /in/b.txt\n"; got != want {
		t.Errorf("progress = %q, want %q", got, want)
	}
}

func TestNewProgress_Bar(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress(&buf, true)
	for i := 1; i <= 3; i++ {
		progress(i, 3, "/in/file.json")
	}
	if buf.Len() == 0 {
		t.Error("progress bar wrote nothing")
	}
}

func TestClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		var q models.SearchQuery
		_ = json.NewDecoder(r.Body).Decode(&q)
		if q.Filter["journal"].Values[0] != "Nature" {
			http.Error(w, `{"error":"filter lost"}`, http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(SearchResults{Query: q.Query, Articles: sampleArticles()[:1]})
	})
	mux.HandleFunc("/api/v1/documents/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"document missing: not found"}`))
	})
	mux.HandleFunc("/api/v1/metadata/journal/values", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("near") != "" {
			_, _ = w.Write([]byte(`{"suggestions":[{"value":"Nature","distance":1,"count":2}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"values":[{"value":"Nature","count":2}]}`))
	})
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"upstream unavailable","retryable":true}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(ts.URL + "/")
	ctx := context.Background()

	articles, err := c.Search(ctx, &models.SearchQuery{Query: "x", Filter: models.QueryFilter{"journal": models.Eq("Nature")}})
	if err != nil || len(articles) != 1 || articles[0].DocumentID != "PMC100" {
		t.Errorf("Search() = %+v, %v", articles, err)
	}
	if err := c.DeleteDocument(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("DeleteDocument() error = %v, want not found", err)
	}
	values, err := c.Values(ctx, "journal", 0)
	if err != nil || len(values) != 1 || values[0].Count != 2 {
		t.Errorf("Values() = %+v, %v", values, err)
	}
	suggestions, err := c.Suggest(ctx, "journal", "Natrue", 2, 5)
	if err != nil || len(suggestions) != 1 || suggestions[0].Value != "Nature" {
		t.Errorf("Suggest() = %+v, %v", suggestions, err)
	}
	if _, err := c.Status(ctx); !errors.Is(err, models.ErrUnavailable) {
		t.Errorf("Status() error = %v, want unavailable", err)
	}
}

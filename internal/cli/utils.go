// Package cli provides output, filter parsing and progress helpers for the litindex CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hyperjump/litindex/internal/indexer"
	"github.com/hyperjump/litindex/internal/keyword"
	"github.com/hyperjump/litindex/internal/models"
	"github.com/hyperjump/litindex/internal/search"
	"github.com/hyperjump/litindex/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// snippetLen bounds the chunk excerpt shown per hit in text output.
const snippetLen = 240

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	faintStyle = lipgloss.NewStyle().Faint(true)
	matchStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// SearchResults is the JSON shape of search output.
type SearchResults struct {
	Query    string                   `json:"query"`
	Articles []models.ArticleResponse `json:"articles"`
}

// WriteSearchResults writes ranked articles to w in the given format.
// Text output highlights query terms in each chunk excerpt.
func WriteSearchResults(w io.Writer, query string, articles []models.ArticleResponse, format OutputFormat) error {
	if format == OutputJSON {
		if articles == nil {
			articles = []models.ArticleResponse{}
		}
		return writeJSON(w, SearchResults{Query: query, Articles: articles})
	}
	if len(articles) == 0 {
		fmt.Fprintf(w, "No matching articles for %q\n", query)
		return nil
	}
	open, closeTag := markers(matchStyle)
	fmt.Fprintf(w, "Found %d article(s) for %q\n\n", len(articles), query)
	for i, a := range articles {
		title := a.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%d. %s\n", i+1, titleStyle.Render(title))
		fmt.Fprintf(w, "   %s\n", faintStyle.Render(fmt.Sprintf("%s | %s | score %.4f", a.DocumentID, a.Source, a.Score)))
		if ids := formatIdentifiers(a.Identifiers); ids != "" {
			fmt.Fprintf(w, "   %s\n", ids)
		}
		for _, c := range a.Chunks {
			snippet := search.Highlight(utils.OneLine(c.Text), query, snippetLen, open, closeTag)
			fmt.Fprintf(w, "   [%d] %.4f  %s\n", c.Sequence, c.Score, snippet)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// markers splits a style's rendering into the sequences around its content.
// Both are empty when the output has no color support.
func markers(style lipgloss.Style) (string, string) {
	const probe = "\x00"
	rendered := style.Render(probe)
	i := strings.Index(rendered, probe)
	if i < 0 {
		return "", ""
	}
	return rendered[:i], rendered[i+len(probe):]
}

func formatIdentifiers(ids map[string]string) string {
	if len(ids) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+ids[k])
	}
	return strings.Join(parts, ", ")
}

// WriteReport summarizes an indexing run.
func WriteReport(w io.Writer, report *indexer.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Indexed %d document(s), %d chunk(s)", len(report.Indexed), report.Chunks)
	if n := len(report.Unchanged); n > 0 {
		fmt.Fprintf(w, ", %d unchanged", n)
	}
	if n := len(report.Skipped); n > 0 {
		fmt.Fprintf(w, ", %d skipped", n)
	}
	fmt.Fprintln(w)
	for _, f := range report.Skipped {
		id := f.DocumentID
		if id == "" {
			id = "(no id)"
		}
		fmt.Fprintf(w, "  skipped %s: %s\n", id, f.Reason)
	}
	return nil
}

// WriteValues lists distinct field values with their document counts.
func WriteValues(w io.Writer, field string, values []keyword.ValueCount, format OutputFormat) error {
	if format == OutputJSON {
		if values == nil {
			values = []keyword.ValueCount{}
		}
		return writeJSON(w, map[string]interface{}{"field": field, "values": values})
	}
	if len(values) == 0 {
		fmt.Fprintf(w, "No values for %s\n", field)
		return nil
	}
	width := 0
	for _, v := range values {
		if len(v.Value) > width {
			width = len(v.Value)
		}
	}
	for _, v := range values {
		fmt.Fprintf(w, "%-*s  %d\n", width, v.Value, v.Count)
	}
	return nil
}

// WriteSuggestions lists values close to one that matched nothing.
func WriteSuggestions(w io.Writer, field, near string, suggestions []keyword.Suggestion, format OutputFormat) error {
	if format == OutputJSON {
		if suggestions == nil {
			suggestions = []keyword.Suggestion{}
		}
		return writeJSON(w, map[string]interface{}{"field": field, "near": near, "suggestions": suggestions})
	}
	if len(suggestions) == 0 {
		fmt.Fprintf(w, "No %s values close to %q\n", field, near)
		return nil
	}
	fmt.Fprintf(w, "Did you mean (%s):\n", field)
	for _, s := range suggestions {
		fmt.Fprintf(w, "  %s (%d document(s), distance %d)\n", s.Value, s.Count, s.Distance)
	}
	return nil
}

// WriteStatus prints status fields in key order, nested maps indented.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	writeFields(w, status, "")
	return nil
}

func writeFields(w io.Writer, m map[string]interface{}, indent string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]interface{}:
			fmt.Fprintf(w, "%s%s:\n", indent, k)
			writeFields(w, v, indent+"  ")
		case []string:
			fmt.Fprintf(w, "%s%s: %s\n", indent, k, strings.Join(v, ", "))
		case []interface{}:
			parts := make([]string, len(v))
			for i, e := range v {
				parts[i] = fmt.Sprint(e)
			}
			fmt.Fprintf(w, "%s%s: %s\n", indent, k, strings.Join(parts, ", "))
		case float64:
			fmt.Fprintf(w, "%s%s: %s\n", indent, k, models.FormatValue(v))
		default:
			fmt.Fprintf(w, "%s%s: %v\n", indent, k, v)
		}
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

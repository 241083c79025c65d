package search

import (
	"strings"
	"unicode"

	"github.com/hyperjump/litindex/pkg/utils"
)

// Highlight returns a window of content of at most maxLen bytes, centered on
// the first query term found, with every query term wrapped in openTag and closeTag.
// maxLen <= 0 keeps the whole content.
func Highlight(content, query string, maxLen int, openTag, closeTag string) string {
	terms := queryTerms(query)
	lower := strings.ToLower(content)

	if maxLen > 0 && len(content) > maxLen {
		start := -1
		for _, t := range terms {
			if i := strings.Index(lower, t); i >= 0 && (start < 0 || i < start) {
				start = i
			}
		}
		if start < 0 || len(lower) != len(content) {
			start = 0
		}
		start -= maxLen / 4
		if start < 0 {
			start = 0
		}
		for start > 0 && !utf8Start(content[start]) {
			start--
		}
		prefix := ""
		if start > 0 {
			prefix = "..."
		}
		content = prefix + utils.Truncate(content[start:], maxLen)
		lower = strings.ToLower(content)
	}
	if len(terms) == 0 || openTag == "" && closeTag == "" || len(lower) != len(content) {
		return content
	}

	var b strings.Builder
	for i := 0; i < len(content); {
		matched := ""
		for _, t := range terms {
			if strings.HasPrefix(lower[i:], t) && len(t) > len(matched) {
				matched = t
			}
		}
		if matched == "" {
			b.WriteByte(content[i])
			i++
			continue
		}
		b.WriteString(openTag)
		b.WriteString(content[i : i+len(matched)])
		b.WriteString(closeTag)
		i += len(matched)
	}
	return b.String()
}

// queryTerms splits a query into lowercase words of at least three letters.
func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

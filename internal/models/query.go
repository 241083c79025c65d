package models

import (
	"fmt"
	"strings"
)

const (
	DefaultMaxArticles         = 3
	DefaultMaxChunksPerArticle = 5
	maxArticlesLimit           = 100
	maxChunksPerArticleLimit   = 100
)

// SearchQuery is a retrieval request: free text, a metadata filter, and the article cap.
type SearchQuery struct {
	Query               string      `json:"query"`
	Filter              QueryFilter `json:"filter,omitempty"`
	MaxArticles         int         `json:"max_articles,omitempty"`
	MaxChunksPerArticle int         `json:"max_chunks_per_article,omitempty"`
}

// Validate ensures the query is usable and fills default caps.
// Returns ErrEmptyQuery for a blank query and ErrMalformedInput for negative caps or a bad filter.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	if q.MaxArticles < 0 || q.MaxChunksPerArticle < 0 {
		return fmt.Errorf("%w: caps must not be negative", ErrMalformedInput)
	}
	if q.MaxArticles == 0 {
		q.MaxArticles = DefaultMaxArticles
	}
	if q.MaxArticles > maxArticlesLimit {
		q.MaxArticles = maxArticlesLimit
	}
	if q.MaxChunksPerArticle == 0 {
		q.MaxChunksPerArticle = DefaultMaxChunksPerArticle
	}
	if q.MaxChunksPerArticle > maxChunksPerArticleLimit {
		q.MaxChunksPerArticle = maxChunksPerArticleLimit
	}
	return q.Filter.Validate()
}

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// DefaultSearchLimit caps catalog search results when no limit is given.
const DefaultSearchLimit = 10

const fuzziness = 2

// Match pairs a cataloged document with its search score.
type Match struct {
	Document *DocumentInfo `json:"document"`
	Score    float64       `json:"score"`
}

// Search finds documents whose display name, chapter, or topics match the
// query. An exact match query runs first; when it finds nothing, a fuzzy
// pass catches misspellings like "fractoins".
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]*Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	matches, err := c.runQuery(bleve.NewMatchQuery(query), limit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		matches, err = c.runQuery(fuzzyQuery(query), limit)
		if err != nil {
			return nil, err
		}
	}
	return matches, nil
}

func (c *Catalog) runQuery(q blevequery.Query, limit int) ([]*Match, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	matches := make([]*Match, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if doc, ok := c.docs[hit.ID]; ok {
			matches = append(matches, &Match{Document: doc, Score: hit.Score})
		}
	}
	return matches, nil
}

// fuzzyQuery builds a disjunction of per-term fuzzy queries so any
// misspelled term can still match.
func fuzzyQuery(query string) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return bleve.NewMatchQuery(query)
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/alquilibros/alquilibros-server/internal/query"
)

// Search limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Hit is one matching book.
type Hit struct {
	ID    string
	Score float64
}

// fieldBoosts weights where a match was found.
var fieldBoosts = []struct {
	field string
	boost float64
}{
	{"titulo", 3.0},
	{"autor", 2.0},
	{"categoria", 1.0},
	{"idioma", 0.5},
	{"sinopsis", 0.5},
	{"criticas", 0.3},
}

// Search returns books matching text, best first. limit is clamped to [1, MaxLimit]; 0 means DefaultLimit.
func (i *Index) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(text), limit, 0, false)

	i.mu.RLock()
	defer i.mu.RUnlock()

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

func buildQuery(text string) bq.Query {
	folded := query.Fold(text)

	var queries []bq.Query
	for _, fb := range fieldBoosts {
		m := bleve.NewMatchQuery(folded)
		m.SetField(fb.field)
		m.SetBoost(fb.boost)
		queries = append(queries, m)
	}

	// Typo tolerance and type-ahead on titles and authors.
	words := strings.Fields(folded)
	last := words[len(words)-1]
	for _, field := range []string{"titulo", "autor"} {
		if len(last) >= 4 {
			fz := bleve.NewFuzzyQuery(last)
			fz.SetFuzziness(1)
			fz.SetField(field)
			fz.SetBoost(0.8)
			queries = append(queries, fz)
		}
		if len(last) >= 2 {
			p := bleve.NewPrefixQuery(last)
			p.SetField(field)
			p.SetBoost(0.5)
			queries = append(queries, p)
		}
	}

	isbn := bleve.NewTermQuery(NormalizeISBN(text))
	isbn.SetField("isbn")
	isbn.SetBoost(5.0)
	queries = append(queries, isbn)

	return bleve.NewDisjunctionQuery(queries...)
}

// Package rag is the boundary to the retrieval service that holds coaching
// reference material. Indexing and similarity search live elsewhere; this
// package only asks for the k most relevant excerpts and formats them for
// prompts.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DefaultK is the number of excerpts requested when k is not positive.
const DefaultK = 4

// Fetcher retrieves reference context for a query.
type Fetcher interface {
	FetchContext(ctx context.Context, query string, k int) (string, error)
}

// Excerpt is one retrieved passage.
type Excerpt struct {
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score,omitempty"`
}

// FormatExcerpts renders excerpts as "[source] text" blocks separated by a
// blank line. Empty excerpts are skipped.
func FormatExcerpts(excerpts []Excerpt) string {
	blocks := make([]string, 0, len(excerpts))
	for _, e := range excerpts {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		source := strings.TrimSpace(e.Source)
		if source == "" {
			source = "unknown"
		}
		blocks = append(blocks, fmt.Sprintf("[%s] %s", source, text))
	}
	return strings.Join(blocks, "\n\n")
}

// StaticFetcher serves a fixed set of excerpts, ranked by how many query
// words they contain. It backs the CLI when no retrieval service runs.
type StaticFetcher struct {
	Excerpts []Excerpt
}

// FetchContext implements Fetcher.
func (s *StaticFetcher) FetchContext(ctx context.Context, query string, k int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if k <= 0 {
		k = DefaultK
	}

	words := strings.Fields(strings.ToLower(query))
	type scored struct {
		excerpt Excerpt
		hits    int
	}
	var ranked []scored
	for _, e := range s.Excerpts {
		text := strings.ToLower(e.Text)
		hits := 0
		for _, w := range words {
			if len(w) > 2 && strings.Contains(text, w) {
				hits++
			}
		}
		if hits > 0 || len(words) == 0 {
			ranked = append(ranked, scored{e, hits})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].hits > ranked[j].hits })
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	out := make([]Excerpt, len(ranked))
	for i, r := range ranked {
		out[i] = r.excerpt
	}
	return FormatExcerpts(out), nil
}

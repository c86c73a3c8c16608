package draft

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Quote is a content-addressed text excerpt surfaced as part of a quiz
// result. Its ID is derived from the literal text (see QuoteID), so the
// same quote keeps its identity across draft versions.
type Quote struct {
	ID         string
	Text       string
	BookName   string
	BookAuthor string
	ResultID   string
}

// Book is one recommended book within a result.
type Book struct {
	Name    string   `mapstructure:"name"`
	Author  string   `mapstructure:"author"`
	Quotes  []string `mapstructure:"quotes"`
	Pitch   string   `mapstructure:"pitch"`
	CoverID string   `mapstructure:"cover_id"`
}

type resultNode struct {
	Books []Book `mapstructure:"books"`
}

// ExtractQuotes parses the draft's results -> books -> quotes hierarchy
// and returns every quote with its content-hash identifier, literal text,
// owning book, and originating result id. Output is sorted by result id
// then text for stable iteration.
func ExtractQuotes(tree map[string]any) ([]Quote, error) {
	results, _ := tree["results"].(map[string]any)

	var quotes []Quote
	for resultID, raw := range results {
		var node resultNode
		if err := mapstructure.Decode(raw, &node); err != nil {
			return nil, fmt.Errorf("result %q: %w", resultID, err)
		}
		for _, book := range node.Books {
			for _, text := range book.Quotes {
				quotes = append(quotes, Quote{
					ID:         QuoteID(text),
					Text:       text,
					BookName:   book.Name,
					BookAuthor: book.Author,
					ResultID:   resultID,
				})
			}
		}
	}

	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].ResultID != quotes[j].ResultID {
			return quotes[i].ResultID < quotes[j].ResultID
		}
		return quotes[i].Text < quotes[j].Text
	})
	return quotes, nil
}

// QuoteIDs returns the deduplicated set of quote identifiers in a draft.
// Used to seed the durable like-counter registry on draft activation.
func QuoteIDs(quotes []Quote) []string {
	seen := make(map[string]bool, len(quotes))
	ids := make([]string, 0, len(quotes))
	for _, q := range quotes {
		if !seen[q.ID] {
			seen[q.ID] = true
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// ResultBooks decodes the books of a single result subtree.
// The engine uses it to build result views with live quote data.
func ResultBooks(result any) ([]Book, error) {
	var node resultNode
	if err := mapstructure.Decode(result, &node); err != nil {
		return nil, fmt.Errorf("decode result books: %w", err)
	}
	return node.Books, nil
}

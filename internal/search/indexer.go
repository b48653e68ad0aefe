/*
Package search implements fuzzy lookup over the tool catalog.

Tool ids are indexed in an in-memory Bleve index, both verbatim and split into
words ("Samtools_sort" -> "Samtools sort", "FastQC" -> "FastQC Fast QC"), so
that partial names and small typos still find the right tool.
*/
package search

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// DefaultLimit is used when Suggest is called with a non-positive limit.
	DefaultLimit = 5

	exactBoost = 10.0
)

// Suggestion is a catalog tool matching a query.
type Suggestion struct {
	Tool  string  `json:"tool"`
	Score float64 `json:"score"`
}

// Indexer manages the search index for the tool catalog.
type Indexer struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
}

// NewIndexer creates an indexer with an in-memory Bleve index.
func NewIndexer() (*Indexer, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return &Indexer{bleveIndex: index}, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	toolMapping := bleve.NewDocumentMapping()

	// id: the exact tool id, matched verbatim
	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	idFieldMapping.IncludeInAll = false
	toolMapping.AddFieldMappingsAt("id", idFieldMapping)

	// terms: the id split into words
	termsFieldMapping := bleve.NewTextFieldMapping()
	termsFieldMapping.Analyzer = standard.Name
	toolMapping.AddFieldMappingsAt("terms", termsFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", toolMapping)

	return indexMapping
}

// IndexTools adds tool ids to the index. Re-indexing an id replaces it.
func (i *Indexer) IndexTools(tools []string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()
	for _, tool := range tools {
		doc := map[string]interface{}{
			"id":    tool,
			"terms": indexTerms(tool),
		}
		if err := batch.Index(tool, doc); err != nil {
			return fmt.Errorf("failed to index tool %s: %w", tool, err)
		}
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index tools: %w", err)
	}
	return nil
}

// Count returns the total number of indexed tools.
func (i *Indexer) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return docCount, nil
}

// Suggest returns up to limit tools matching text, best first. Ties are
// ordered by tool id. An empty query returns no suggestions.
func (i *Indexer) Suggest(text string, limit int) ([]Suggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Suggestion{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	request := bleve.NewSearchRequestOptions(buildSuggestQuery(text), limit, 0, false)
	results, err := i.bleveIndex.Search(request)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	return convertBleveResults(results), nil
}

// Close closes the index and releases resources.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}
	return nil
}

// buildSuggestQuery matches the exact id, the words of the query with one
// edit of fuzziness, and each word as a prefix.
func buildSuggestQuery(text string) query.Query {
	exact := bleve.NewTermQuery(text)
	exact.SetField("id")
	exact.SetBoost(exactBoost)

	words := indexTerms(text)

	match := bleve.NewMatchQuery(words)
	match.SetField("terms")
	match.SetFuzziness(1)

	queries := []query.Query{exact, match}
	for _, word := range strings.Fields(strings.ToLower(words)) {
		prefix := bleve.NewPrefixQuery(word)
		prefix.SetField("terms")
		queries = append(queries, prefix)
	}

	return bleve.NewDisjunctionQuery(queries...)
}

// convertBleveResults converts Bleve hits to suggestions.
func convertBleveResults(results *bleve.SearchResult) []Suggestion {
	suggestions := make([]Suggestion, 0, len(results.Hits))
	for _, hit := range results.Hits {
		suggestions = append(suggestions, Suggestion{Tool: hit.ID, Score: hit.Score})
	}

	sort.SliceStable(suggestions, func(a, b int) bool {
		if suggestions[a].Score != suggestions[b].Score {
			return suggestions[a].Score > suggestions[b].Score
		}
		return suggestions[a].Tool < suggestions[b].Tool
	})
	return suggestions
}

// indexTerms returns the separator-delimited words of id followed by any
// extra words from case splitting, without repeats.
func indexTerms(id string) string {
	seen := map[string]bool{}
	var out []string
	add := func(words []string) {
		for _, w := range words {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}

	add(strings.FieldsFunc(id, isSeparator))
	add(strings.Fields(splitTerms(id)))
	return strings.Join(out, " ")
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
}

// splitTerms breaks a tool id into words on separators and lower-to-upper
// case changes.
func splitTerms(id string) string {
	var b strings.Builder
	prev := rune(0)
	for _, r := range id {
		switch {
		case isSeparator(r):
			b.WriteRune(' ')
			prev = ' '
			continue
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

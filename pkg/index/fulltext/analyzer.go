package fulltext

import (
	"strings"
	"unicode"
)

// Analyzer tokenizes and normalizes text before it enters or queries an
// inverted index (spec §4.7's `analyzer` index parameter). No teacher
// or pack repo carries a tokenizer library (bleve's analysis package
// isn't in go.mod and nothing imports it), so tokenization is a small
// self-contained transform here rather than a dependency.
type Analyzer struct {
	Stopwords map[string]bool
}

// DefaultAnalyzer lowercases, splits on non-letter/non-digit runes, and
// drops a small set of English stopwords — enough to make BM25 scoring
// meaningful without pulling in a stemming library.
func DefaultAnalyzer() Analyzer {
	return Analyzer{Stopwords: defaultStopwords}
}

var defaultStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "into": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "to": true, "was": true, "with": true,
}

// Tokenize splits text into normalized terms, in order, including
// repeats — callers that need per-term frequency count occurrences
// themselves from the returned slice.
func (a Analyzer) Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(f)
		if a.Stopwords != nil && a.Stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TermFrequencies collapses a token stream into each distinct term's
// occurrence count, the per-term `frequency` spec §4.7 indexes.
func TermFrequencies(tokens []string) map[string]uint64 {
	freq := make(map[string]uint64, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}

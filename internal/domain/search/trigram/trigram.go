// Package trigram scores text similarity as the Jaccard index of trigram sets.
//
// Both strings are normalized the same way before decomposition:
//
//  1. Unicode NFD, combining marks removed ("Velázquez" -> "Velazquez").
//  2. Full case folding.
//  3. Split into words on every rune that is neither a letter nor a digit,
//     so runs of whitespace and punctuation collapse.
//  4. Every word w is padded as "  "+w+" " and cut into overlapping
//     3-rune grams; the gram set of the string is the union over words.
//
// Similarity(a, b) = |A ∩ B| / |A ∪ B|, and 0 when both sets are empty.
// The score is deterministic, symmetric and bounded in [0, 1]; a non-empty
// string scored against itself yields exactly 1.
package trigram

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Size is the gram length in runes.
const Size = 3

// Set is a set of trigrams.
type Set map[string]struct{}

// Normalize applies accent and case folding. Transformers are stateful, so a
// fresh chain is built per call.
func Normalize(s string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s,
	)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}

// Words returns the normalized words of s.
func Words(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Grams decomposes s into its trigram set.
func Grams(s string) Set {
	set := make(Set)
	for _, w := range Words(s) {
		padded := []rune("  " + w + " ")
		for i := 0; i+Size <= len(padded); i++ {
			set[string(padded[i:i+Size])] = struct{}{}
		}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|.
func Jaccard(a, b Set) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for g := range small {
		if _, ok := large[g]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// Similarity scores a against b.
func Similarity(a, b string) float64 {
	return Jaccard(Grams(a), Grams(b))
}

// Query holds the pre-computed grams of a search string so that many
// candidates can be scored without re-decomposing it.
type Query struct {
	grams Set
}

// NewQuery decomposes the search string once.
func NewQuery(text string) Query {
	return Query{grams: Grams(text)}
}

// Score returns the similarity of candidate to the query.
func (q Query) Score(candidate string) float64 {
	return Jaccard(q.grams, Grams(candidate))
}

// IsEmpty reports whether the query produced no grams (no letters or digits).
func (q Query) IsEmpty() bool { return len(q.grams) == 0 }

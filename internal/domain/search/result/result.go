package result

import (
	"sort"

	"github.com/kailas-cloud/invoicegate/internal/domain/invoice"
)

// Match is a single scored address hit.
type Match struct {
	invoice invoice.Invoice
	score   float64
}

// New creates a match.
func New(inv invoice.Invoice, score float64) Match {
	return Match{invoice: inv, score: score}
}

// Invoice returns the matched row.
func (m *Match) Invoice() invoice.Invoice { return m.invoice }

// Score returns the similarity in [0, 1].
func (m *Match) Score() float64 { return m.score }

// Rank keeps matches scoring at least minScore, orders them by score
// descending then invoice ID ascending, and truncates to limit.
// The input slice is reordered in place.
func Rank(matches []Match, minScore float64, limit int) []Match {
	kept := matches[:0]
	for _, m := range matches {
		if m.score >= minScore {
			kept = append(kept, m)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return better(kept[i], kept[j]) })

	if limit >= 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// Top keeps the best matches seen so far, at most limit of them, in Rank
// order. Memory stays bounded however many candidates are offered.
type Top struct {
	minScore float64
	limit    int
	matches  []Match
}

// NewTop creates a collector keeping up to limit matches scoring at least minScore.
func NewTop(minScore float64, limit int) *Top {
	if limit < 0 {
		limit = 0
	}
	return &Top{minScore: minScore, limit: limit, matches: make([]Match, 0, limit)}
}

// Offer considers m for the result.
func (t *Top) Offer(m Match) {
	if m.score < t.minScore || t.limit == 0 {
		return
	}
	if len(t.matches) == t.limit && !better(m, t.matches[len(t.matches)-1]) {
		return
	}
	i := sort.Search(len(t.matches), func(i int) bool { return better(m, t.matches[i]) })
	if len(t.matches) < t.limit {
		t.matches = append(t.matches, Match{})
	}
	copy(t.matches[i+1:], t.matches[i:len(t.matches)-1])
	t.matches[i] = m
}

// Matches returns the kept matches, best first.
func (t *Top) Matches() []Match {
	out := make([]Match, len(t.matches))
	copy(out, t.matches)
	return out
}

// better reports whether a ranks ahead of b.
func better(a, b Match) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.invoice.ID < b.invoice.ID
}

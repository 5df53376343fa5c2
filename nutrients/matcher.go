package nutrients

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultFuzzyThreshold is the similarity a fuzzy candidate must exceed.
const DefaultFuzzyThreshold = 0.80

// Tier identifies which matching strategy produced a match.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierPrefix
	TierContains
	TierFuzzy
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierPrefix:
		return "prefix"
	case TierContains:
		return "contains"
	case TierFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// Match is a resolved mention.
type Match struct {
	Record FoodRecord
	Tier   Tier
	Score  float64
}

// Matcher resolves mentions against an Index. Tiers are tried in order and
// the first tier with a hit wins; within a tier the earliest record wins.
type Matcher struct {
	index     *Index
	threshold float64
}

func NewMatcher(index *Index, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return &Matcher{index: index, threshold: threshold}
}

// Threshold returns the fuzzy acceptance threshold in use.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Match returns the record a mention resolves to, if any.
func (m *Matcher) Match(mention string) (Match, bool) {
	q := strings.ToLower(strings.TrimSpace(mention))
	if q == "" {
		return Match{}, false
	}

	folded := m.index.folded

	for i, name := range folded {
		if name == q {
			return Match{Record: m.index.foods[i], Tier: TierExact, Score: 1}, true
		}
	}
	for i, name := range folded {
		if strings.HasPrefix(name, q) {
			return Match{Record: m.index.foods[i], Tier: TierPrefix, Score: 1}, true
		}
	}
	for i, name := range folded {
		if strings.Contains(name, q) {
			return Match{Record: m.index.foods[i], Tier: TierContains, Score: 1}, true
		}
	}

	best, bestScore := -1, 0.0
	for i, name := range folded {
		if s := Similarity(q, name); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 && bestScore > m.threshold {
		return Match{Record: m.index.foods[best], Tier: TierFuzzy, Score: bestScore}, true
	}
	return Match{}, false
}

// MatchLeadingSegment resolves a recognizer label by comparing it with the
// part of each canonical name before the first comma ("APPLE, RAW" -> "apple"),
// falling back to Match.
func (m *Matcher) MatchLeadingSegment(label string) (Match, bool) {
	q := strings.ToLower(strings.TrimSpace(label))
	if q == "" {
		return Match{}, false
	}
	for i, name := range m.index.folded {
		head, _, _ := strings.Cut(name, ",")
		if strings.TrimSpace(head) == q {
			return Match{Record: m.index.foods[i], Tier: TierExact, Score: 1}, true
		}
	}
	return m.Match(label)
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

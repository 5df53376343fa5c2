package pipeline

import (
	"fmt"
	"strings"

	"nutrivision/nutrients"
)

// DefaultIgnoredMentions are generic words that never name a food.
var DefaultIgnoredMentions = []string{"meal", "breakfast", "lunch", "dinner", "snack", "food", "drink", "dish"}

// ResolvedFood is a mention matched to a reference record.
type ResolvedFood struct {
	Mention string
	Record  nutrients.FoodRecord
	Tier    nutrients.Tier
	Profile nutrients.NutrientProfile
}

// Summary is the verified nutrition data for one turn.
type Summary struct {
	Text       string
	Foods      []ResolvedFood
	Unresolved []string
}

func (s Summary) ResolvedCount() int { return len(s.Foods) }

// Aggregator resolves mentions against the reference index.
type Aggregator struct {
	index   *nutrients.Index
	matcher *nutrients.Matcher
	ignored map[string]bool
}

func NewAggregator(index *nutrients.Index, matcher *nutrients.Matcher, ignored []string) *Aggregator {
	if ignored == nil {
		ignored = DefaultIgnoredMentions
	}
	set := make(map[string]bool, len(ignored))
	for _, w := range ignored {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = true
		}
	}
	return &Aggregator{index: index, matcher: matcher, ignored: set}
}

// Aggregate formats one block per resolved mention in mention order. Misses
// are reported as unresolved and never given numbers.
func (a *Aggregator) Aggregate(mentions []string) Summary {
	var (
		s Summary
		b strings.Builder
	)
	for _, mention := range mentions {
		key := strings.ToLower(strings.TrimSpace(mention))
		if key == "" || a.ignored[key] {
			continue
		}
		m, ok := a.matcher.Match(key)
		if !ok {
			s.Unresolved = append(s.Unresolved, key)
			continue
		}
		profile, _ := a.index.Profile(m.Record.ID)
		s.Foods = append(s.Foods, ResolvedFood{Mention: key, Record: m.Record, Tier: m.Tier, Profile: profile})
		b.WriteString(FormatBlock(key, profile))
	}
	s.Text = b.String()
	return s
}

// FormatBlock renders the per-100g values of one food. Unknown values
// render as N/A.
func FormatBlock(name string, p nutrients.NutrientProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nHere is the nutritional analysis per 100g for %s:\n", name)
	fmt.Fprintf(&b, "Calories: %s kcal\n", formatValue(p.Calories))
	fmt.Fprintf(&b, "Protein: %s g\n", formatValue(p.Protein))
	fmt.Fprintf(&b, "Fat: %s g\n", formatValue(p.Fat))
	fmt.Fprintf(&b, "Carbohydrates: %s g\n", formatValue(p.Carbohydrates))
	fmt.Fprintf(&b, "Fiber: %s g\n", formatValue(p.Fiber))
	return b.String()
}

func formatValue(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.3f", *v)
}

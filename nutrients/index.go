// Package nutrients holds the read-only reference nutrient index and the
// tiered matcher that resolves free-text food mentions against it.
package nutrients

import "strings"

// FoodRecord is one entry of the reference food-name table.
type FoodRecord struct {
	ID            string `json:"id"`
	CanonicalName string `json:"canonical_name"`
}

// NutrientProfile holds per-100g values. A nil field is unknown, never zero.
type NutrientProfile struct {
	Calories      *float64 `json:"calories"`
	Protein       *float64 `json:"protein"`
	Fat           *float64 `json:"fat"`
	Carbohydrates *float64 `json:"carbohydrates"`
	Fiber         *float64 `json:"fiber"`
}

// IsEmpty reports whether every value is unknown.
func (p NutrientProfile) IsEmpty() bool {
	return p.Calories == nil && p.Protein == nil && p.Fat == nil && p.Carbohydrates == nil && p.Fiber == nil
}

// Index is built once at startup and never mutated afterwards, so it is safe
// to share between requests without locking.
type Index struct {
	foods    []FoodRecord
	folded   []string
	profiles map[string]NutrientProfile
}

// NewIndex builds an index from records in reference-table order. Later
// records with an already-seen id are ignored.
func NewIndex(foods []FoodRecord, profiles map[string]NutrientProfile) *Index {
	ix := &Index{
		foods:    make([]FoodRecord, 0, len(foods)),
		folded:   make([]string, 0, len(foods)),
		profiles: make(map[string]NutrientProfile, len(profiles)),
	}
	seen := make(map[string]bool, len(foods))
	for _, f := range foods {
		if f.ID == "" || seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		ix.foods = append(ix.foods, f)
		ix.folded = append(ix.folded, strings.ToLower(strings.TrimSpace(f.CanonicalName)))
	}
	for id, p := range profiles {
		ix.profiles[id] = p
	}
	return ix
}

// Len returns the number of food records.
func (ix *Index) Len() int { return len(ix.foods) }

// Foods returns a copy of the records in reference-table order.
func (ix *Index) Foods() []FoodRecord {
	out := make([]FoodRecord, len(ix.foods))
	copy(out, ix.foods)
	return out
}

// Profile returns the nutrient profile for a food id.
func (ix *Index) Profile(id string) (NutrientProfile, bool) {
	p, ok := ix.profiles[id]
	return p, ok
}

package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrivision/nutrients"
)

func newTestAggregator(ignored []string) *Aggregator {
	ix := fixtureIndex()
	return NewAggregator(ix, nutrients.NewMatcher(ix, nutrients.DefaultFuzzyThreshold), ignored)
}

func TestAggregator_Aggregate(t *testing.T) {
	a := newTestAggregator(nil)

	s := a.Aggregate([]string{"banana", "lunch", "apple", "unobtainium"})

	require.Equal(t, 2, s.ResolvedCount())
	assert.Equal(t, "banana", s.Foods[0].Mention)
	assert.Equal(t, "11071", s.Foods[0].Record.ID)
	assert.Equal(t, "apple", s.Foods[1].Mention)
	assert.Equal(t, nutrients.TierExact, s.Foods[1].Tier)
	assert.Equal(t, []string{"unobtainium"}, s.Unresolved)

	assert.Less(t, strings.Index(s.Text, "for banana"), strings.Index(s.Text, "for apple"), "blocks follow mention order")
	assert.Contains(t, s.Text, "Calories: 47.800 kcal")
	assert.NotContains(t, s.Text, "lunch")
	assert.NotContains(t, s.Text, "unobtainium")
}

func TestAggregator_NullRendersNA(t *testing.T) {
	a := newTestAggregator(nil)

	s := a.Aggregate([]string{"banana"})
	assert.Contains(t, s.Text, "Fiber: N/A g")
	assert.NotContains(t, s.Text, "0.000")

	s = a.Aggregate([]string{"pizza"})
	require.Equal(t, 1, s.ResolvedCount())
	assert.Contains(t, s.Text, "Fat: N/A g")
	assert.Contains(t, s.Text, "Carbohydrates: N/A g")
	assert.NotContains(t, s.Text, "0.000")
}

func TestAggregator_AllMissIsEmpty(t *testing.T) {
	a := newTestAggregator(nil)

	for _, mentions := range [][]string{nil, {"meal", "snack"}, {"quinoa burger"}} {
		s := a.Aggregate(mentions)
		assert.Empty(t, s.Text)
		assert.Zero(t, s.ResolvedCount())
	}
}

func TestAggregator_CustomIgnoreList(t *testing.T) {
	a := newTestAggregator([]string{"Banana"})

	s := a.Aggregate([]string{"banana", "apple"})
	require.Equal(t, 1, s.ResolvedCount())
	assert.Equal(t, "apple", s.Foods[0].Mention)
}

func TestFormatBlock(t *testing.T) {
	got := FormatBlock("apple", nutrients.NutrientProfile{Calories: ptr(47.8), Protein: ptr(0)})
	assert.Equal(t, "\nHere is the nutritional analysis per 100g for apple:\n"+
		"Calories: 47.800 kcal\n"+
		"Protein: 0.000 g\n"+
		"Fat: N/A g\n"+
		"Carbohydrates: N/A g\n"+
		"Fiber: N/A g\n", got)
}

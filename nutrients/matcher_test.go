package nutrients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher(fixtureIndex(), DefaultFuzzyThreshold)

	tests := []struct {
		name     string
		mention  string
		wantID   string
		wantTier Tier
		wantOK   bool
	}{
		{name: "exact beats prefix", mention: "apple", wantID: "1", wantTier: TierExact, wantOK: true},
		{name: "exact is case-insensitive", mention: "  BaNaNa ", wantID: "3", wantTier: TierExact, wantOK: true},
		{name: "prefix", mention: "oatmeal", wantID: "5", wantTier: TierPrefix, wantOK: true},
		{name: "contains", mention: "juice", wantID: "4", wantTier: TierContains, wantOK: true},
		{name: "fuzzy", mention: "tomatto", wantID: "6", wantTier: TierFuzzy, wantOK: true},
		{name: "fuzzy below threshold", mention: "potato", wantOK: false},
		{name: "empty", mention: "   ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Match(tt.mention)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantID, got.Record.ID)
			assert.Equal(t, tt.wantTier, got.Tier)
		})
	}
}

func TestMatcher_ExactIgnoresFuzzyThreshold(t *testing.T) {
	for _, threshold := range []float64{0.01, 0.5, 0.99, 1} {
		m := NewMatcher(fixtureIndex(), threshold)
		for _, f := range fixtureIndex().Foods() {
			got, ok := m.Match(f.CanonicalName)
			require.True(t, ok)
			assert.Equal(t, f.ID, got.Record.ID)
			assert.Equal(t, TierExact, got.Tier)
		}
	}
}

func TestMatcher_TiesGoToTableOrder(t *testing.T) {
	ix := NewIndex([]FoodRecord{
		{ID: "a", CanonicalName: "RICE, BOILED"},
		{ID: "b", CanonicalName: "RICE, FRIED"},
	}, nil)
	m := NewMatcher(ix, 0)

	got, ok := m.Match("rice")
	require.True(t, ok)
	assert.Equal(t, "a", got.Record.ID)
	assert.Equal(t, DefaultFuzzyThreshold, m.Threshold())
}

func TestMatcher_MatchLeadingSegment(t *testing.T) {
	ix := NewIndex([]FoodRecord{
		{ID: "1", CanonicalName: "PIZZA DOUGH"},
		{ID: "2", CanonicalName: "PIZZA, HAM"},
	}, nil)
	m := NewMatcher(ix, DefaultFuzzyThreshold)

	got, ok := m.MatchLeadingSegment("Pizza")
	require.True(t, ok)
	assert.Equal(t, "2", got.Record.ID)

	got, ok = m.MatchLeadingSegment("dough")
	require.True(t, ok)
	assert.Equal(t, TierContains, got.Tier)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("apple", "apple"))
	assert.InDelta(t, 0.6, Similarity("apple", "appel"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.Equal(t, "fuzzy", TierFuzzy.String())
	assert.Equal(t, "none", TierNone.String())
}

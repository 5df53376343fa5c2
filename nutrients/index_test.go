package nutrients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndex(t *testing.T) {
	ix := NewIndex([]FoodRecord{
		{ID: "1", CanonicalName: "APPLE"},
		{ID: "", CanonicalName: "NO ID"},
		{ID: "1", CanonicalName: "APPLE AGAIN"},
		{ID: "2", CanonicalName: " Banana "},
	}, nil)

	require.Equal(t, 2, ix.Len())
	assert.Equal(t, "APPLE", ix.Foods()[0].CanonicalName)
	assert.Equal(t, []string{"apple", "banana"}, ix.folded)

	foods := ix.Foods()
	foods[0].CanonicalName = "changed"
	assert.Equal(t, "APPLE", ix.Foods()[0].CanonicalName)
}

func TestIndex_Profile(t *testing.T) {
	ix := fixtureIndex()

	p, ok := ix.Profile("3")
	require.True(t, ok)
	assert.Equal(t, 88.6, *p.Calories)
	assert.Nil(t, p.Fiber)
	assert.False(t, p.IsEmpty())

	_, ok = ix.Profile("6")
	assert.False(t, ok)
	assert.True(t, NutrientProfile{}.IsEmpty())
}

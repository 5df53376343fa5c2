package pipeline

import (
	"context"
	"errors"

	"nutrivision/chat"
	"nutrivision/llm/mock"
	"nutrivision/nutrients"
	"nutrivision/recipes"
	"nutrivision/recognition"
)

const (
	foodsPrompt       = "List the foods mentioned"
	recipeNamesPrompt = "Which recipes or dishes"
	recipeTermsPrompt = "List the individual dishes"
	finalPrompt       = "User message:"
)

func ptr(v float64) *float64 { return &v }

func fixtureIndex() *nutrients.Index {
	return nutrients.NewIndex(
		[]nutrients.FoodRecord{
			{ID: "11049", CanonicalName: "APPLE"},
			{ID: "11050", CanonicalName: "APPLE, DRIED"},
			{ID: "11071", CanonicalName: "BANANA"},
			{ID: "28921", CanonicalName: "PIZZA, HAM"},
		},
		map[string]nutrients.NutrientProfile{
			"11049": {Calories: ptr(47.8), Protein: ptr(0.3), Fat: ptr(0.1), Carbohydrates: ptr(10.1), Fiber: ptr(2.2)},
			"11071": {Calories: ptr(88.6), Protein: ptr(1.1), Fat: ptr(0.3), Carbohydrates: ptr(19.6)},
			"28921": {Calories: ptr(238.2), Protein: ptr(11.3)},
		},
	)
}

func fixtureRecipes() *recipes.Table {
	return recipes.NewTable([]recipes.Record{
		{Name: "Bean Chili", Ingredients: "beans, tomato", Process: "Simmer."},
		{Name: "Lasagna Noodles", Ingredients: "durum wheat, water", Process: "Boil for 9 minutes."},
	})
}

func newTestAssistant(model *mock.Client, store chat.Store, opts ...func(*Options)) *Assistant {
	o := Options{
		Model:   model,
		Index:   fixtureIndex(),
		Recipes: fixtureRecipes(),
		Store:   store,
	}
	for _, fn := range opts {
		fn(&o)
	}
	a, err := NewAssistant(o)
	if err != nil {
		panic(err)
	}
	return a
}

type fakeRecognizer struct {
	items []recognition.Item
	err   error
	calls int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, img recognition.Image) ([]recognition.Item, error) {
	f.calls++
	return f.items, f.err
}

// failingStore fails every write.
type failingStore struct {
	*chat.MemoryStore
}

var errDiskFull = errors.New("disk full")

func (f failingStore) Create(ctx context.Context, s chat.Session) error { return errDiskFull }

func (f failingStore) Append(ctx context.Context, userID, sessionID string, t chat.Turn) error {
	return errDiskFull
}

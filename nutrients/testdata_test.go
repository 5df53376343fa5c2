package nutrients

func ptr(v float64) *float64 { return &v }

func fixtureIndex() *Index {
	return NewIndex(
		[]FoodRecord{
			{ID: "1", CanonicalName: "APPLE"},
			{ID: "2", CanonicalName: "APPLE, DRIED"},
			{ID: "3", CanonicalName: "BANANA"},
			{ID: "4", CanonicalName: "PINEAPPLE JUICE"},
			{ID: "5", CanonicalName: "OATMEAL PORRIDGE, WATER"},
			{ID: "6", CanonicalName: "TOMATO"},
		},
		map[string]NutrientProfile{
			"1": {Calories: ptr(47.8), Protein: ptr(0.3), Fat: ptr(0.1), Carbohydrates: ptr(10.1), Fiber: ptr(2.2)},
			"3": {Calories: ptr(88.6), Protein: ptr(1.1)},
		},
	)
}

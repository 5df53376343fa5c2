package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nutrivision/llm"
	"nutrivision/recipes"
)

// RecipeResolver finds recipe records for a request in two sequential steps:
// whole recipe names first, then individual dish and ingredient terms.
type RecipeResolver struct {
	model llm.ChatModel
	table *recipes.Table
}

func NewRecipeResolver(model llm.ChatModel, table *recipes.Table) *RecipeResolver {
	return &RecipeResolver{model: model, table: table}
}

// RecipeResolution is what Resolve found and how many model calls it took.
type RecipeResolution struct {
	Records  []recipes.Record
	Terms    []string
	Step     int
	LLMCalls int
}

// Resolve returns the matching records; an empty result is not an error.
func (r *RecipeResolver) Resolve(ctx context.Context, text string) (RecipeResolution, error) {
	var res RecipeResolution

	names, err := listFromModel(ctx, r.model, extractRecipeNamesPrompt, text)
	res.LLMCalls++
	if err != nil {
		return res, err
	}
	res.Terms = names
	if found := r.table.LookupAll(names); len(found) > 0 {
		res.Records, res.Step = found, 1
		slog.Info("RECIPE: Resolved by recipe name", "names", names, "records", len(found))
		return res, nil
	}

	terms, err := listFromModel(ctx, r.model, extractRecipeTermsPrompt, text)
	res.LLMCalls++
	if err != nil {
		return res, err
	}
	res.Terms = terms
	if found := r.table.LookupAll(terms); len(found) > 0 {
		res.Records, res.Step = found, 2
		slog.Info("RECIPE: Resolved by dish terms", "terms", terms, "records", len(found))
		return res, nil
	}

	slog.Info("RECIPE: No recipe found", "names", names, "terms", terms)
	return res, nil
}

// FormatRecipes renders records as the grounding block of a recipe prompt.
func FormatRecipes(records []recipes.Record) string {
	var b strings.Builder
	for i, rec := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Recipe: %s\nIngredients: %s\nInstructions: %s\n", rec.Name, rec.Ingredients, rec.Process)
	}
	return b.String()
}

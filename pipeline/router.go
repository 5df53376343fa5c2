package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nutrivision/nutrients"
	"nutrivision/recognition"
)

// Intent is the branch a turn is routed to.
type Intent string

const (
	IntentImage     Intent = "IMAGE"
	IntentRecipe    Intent = "RECIPE"
	IntentNutrition Intent = "NUTRITION"
	IntentGeneral   Intent = "GENERAL"
)

const recipeKeyword = "recipe"

// Signals are the observations classification is based on.
type Signals struct {
	RecognitionItems []recognition.Item
	Text             string
	NutritionSummary string
}

// Classify picks the intent. Recognized items win over any text heuristic,
// then the recipe keyword, then a non-empty nutrition summary.
func Classify(s Signals) Intent {
	switch {
	case len(s.RecognitionItems) > 0:
		return IntentImage
	case strings.Contains(strings.ToLower(s.Text), recipeKeyword):
		return IntentRecipe
	case strings.TrimSpace(s.NutritionSummary) != "":
		return IntentNutrition
	default:
		return IntentGeneral
	}
}

// turnState accumulates what routing learned about one turn.
type turnState struct {
	Text      string
	Items     []recognition.Item
	Mentions  []string
	Nutrition Summary
	Recipe    RecipeResolution
	LLMCalls  int
}

// strategy produces the grounding for one intent.
type strategy interface {
	Ground(ctx context.Context, t *turnState) (Grounding, error)
}

// strategyFunc adapts a function to strategy.
type strategyFunc func(ctx context.Context, t *turnState) (Grounding, error)

func (f strategyFunc) Ground(ctx context.Context, t *turnState) (Grounding, error) { return f(ctx, t) }

// Router classifies a turn and runs the matching strategy.
type Router struct {
	extractor  *Extractor
	aggregator *Aggregator
	strategies map[Intent]strategy
	tracer     trace.Tracer
}

func NewRouter(extractor *Extractor, aggregator *Aggregator, resolver *RecipeResolver, matcher *nutrients.Matcher, index *nutrients.Index, tracer trace.Tracer) *Router {
	return &Router{
		extractor:  extractor,
		aggregator: aggregator,
		tracer:     tracer,
		strategies: map[Intent]strategy{
			IntentImage:     imageStrategy(matcher, index),
			IntentRecipe:    recipeStrategy(resolver),
			IntentNutrition: strategyFunc(groundNutrition),
			IntentGeneral:   strategyFunc(groundGeneral),
		},
	}
}

// route returns the intent and its grounding. Food extraction only runs when
// neither an image nor the recipe keyword already decided the branch.
func (r *Router) route(ctx context.Context, t *turnState) (Intent, Grounding, error) {
	signals := Signals{RecognitionItems: t.Items, Text: t.Text}
	intent := Classify(signals)

	if intent == IntentGeneral && strings.TrimSpace(t.Text) != "" {
		mentions, err := r.extractor.Extract(ctx, t.Text)
		t.LLMCalls++
		if err != nil {
			return intent, Grounding{}, fmt.Errorf("extract foods: %w", err)
		}
		t.Mentions = mentions
		t.Nutrition = r.aggregator.Aggregate(mentions)
		signals.NutritionSummary = t.Nutrition.Text
		intent = Classify(signals)
	}

	slog.Info("ROUTER: Intent classified", "intent", intent, "items", len(t.Items), "mentions", len(t.Mentions), "resolved", t.Nutrition.ResolvedCount())

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("Strategy.%s", intent))
	defer span.End()

	g, err := r.strategies[intent].Ground(ctx, t)
	if err != nil {
		span.SetStatus(codes.Error, "strategy failed")
		span.RecordError(err)
		return intent, Grounding{}, err
	}
	g.Kind = intent
	span.SetAttributes(
		attribute.Int("recipes_count", len(g.Recipes)),
		attribute.Int("unresolved_count", len(g.Unresolved)),
	)
	return intent, g, nil
}

// imageStrategy shows the recognizer's items and, separately, the verified
// reference values of every item the index knows.
func imageStrategy(matcher *nutrients.Matcher, index *nutrients.Index) strategy {
	return strategyFunc(func(ctx context.Context, t *turnState) (Grounding, error) {
		var (
			b       strings.Builder
			summary Summary
		)
		for _, it := range t.Items {
			name := strings.ToLower(strings.TrimSpace(it.Name))
			m, ok := matcher.MatchLeadingSegment(name)
			if !ok {
				summary.Unresolved = append(summary.Unresolved, name)
				continue
			}
			profile, _ := index.Profile(m.Record.ID)
			summary.Foods = append(summary.Foods, ResolvedFood{Mention: name, Record: m.Record, Tier: m.Tier, Profile: profile})
			b.WriteString(FormatBlock(name, profile))
		}
		summary.Text = b.String()
		t.Nutrition = summary

		return Grounding{
			ImageSummary: recognition.Summary(t.Items),
			Nutrition:    summary.Text,
			Unresolved:   summary.Unresolved,
		}, nil
	})
}

func recipeStrategy(resolver *RecipeResolver) strategy {
	return strategyFunc(func(ctx context.Context, t *turnState) (Grounding, error) {
		res, err := resolver.Resolve(ctx, t.Text)
		t.LLMCalls += res.LLMCalls
		t.Recipe = res
		if err != nil {
			return Grounding{}, fmt.Errorf("resolve recipes: %w", err)
		}
		return Grounding{Recipes: res.Records}, nil
	})
}

func groundNutrition(ctx context.Context, t *turnState) (Grounding, error) {
	return Grounding{Nutrition: t.Nutrition.Text, Unresolved: t.Nutrition.Unresolved}, nil
}

func groundGeneral(ctx context.Context, t *turnState) (Grounding, error) {
	return Grounding{}, nil
}

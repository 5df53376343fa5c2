package pipeline

import (
	"fmt"
	"strings"

	"nutrivision/chat"
	"nutrivision/llm"
	"nutrivision/recipes"
)

// DefaultHistoryTurns is how many stored turns reach the model.
const DefaultHistoryTurns = 10

// Profile carries the user's dietary preferences for one request.
type Profile struct {
	HealthConditions string `json:"healthConditions,omitempty"`
	Diet             string `json:"diet,omitempty"`
	Allergies        string `json:"allergies,omitempty"`
	FavouriteDishes  string `json:"favoriteDishes,omitempty"`
	DislikedDishes   string `json:"dislikedDishes,omitempty"`
}

func (p Profile) render() string {
	fields := []struct{ label, value string }{
		{"Health conditions", p.HealthConditions},
		{"Diet", p.Diet},
		{"Allergies", p.Allergies},
		{"Favourite dishes", p.FavouriteDishes},
		{"Disliked dishes", p.DislikedDishes},
	}
	var lines []string
	for _, f := range fields {
		if v := strings.TrimSpace(f.value); v != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", f.label, v))
		}
	}
	if len(lines) == 0 {
		return "none provided"
	}
	return strings.Join(lines, "\n")
}

// Grounding is the verified data a strategy hands to the assembler.
type Grounding struct {
	Kind Intent
	// ImageSummary lists the recognized items as the recognizer reported them.
	ImageSummary string
	// Nutrition holds reference-index blocks; for IMAGE these are the
	// verified values of recognized items.
	Nutrition  string
	Unresolved []string
	Recipes    []recipes.Record
}

// Assembler builds the final instruction payload from bounded history.
type Assembler struct {
	historyTurns int
}

func NewAssembler(historyTurns int) *Assembler {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &Assembler{historyTurns: historyTurns}
}

// Assemble returns the system message, the most recent turns oldest first and
// exactly one new user message. It has no side effects.
func (a *Assembler) Assemble(history []chat.Turn, text string, g Grounding, p Profile) []llm.Message {
	if len(history) > a.historyTurns {
		history = history[len(history)-a.historyTurns:]
	}

	msgs := make([]llm.Message, 0, 2+2*len(history))
	msgs = append(msgs, llm.System(systemPrompt))
	for _, t := range history {
		// a reply without its question would open the transcript with the
		// assistant role, which Converse rejects
		if strings.TrimSpace(t.UserMessage) == "" {
			continue
		}
		msgs = append(msgs, llm.User(t.UserMessage))
		if strings.TrimSpace(t.AssistantReply) != "" {
			msgs = append(msgs, llm.Assistant(t.AssistantReply))
		}
	}
	return append(msgs, llm.User(render(text, g, p)))
}

func render(text string, g Grounding, p Profile) string {
	profile := p.render()
	switch g.Kind {
	case IntentImage:
		var verified string
		if g.Nutrition != "" {
			verified = "\nVerified reference values:\n" + g.Nutrition
		}
		return fmt.Sprintf(imageTemplate, strings.TrimSpace(g.ImageSummary), verified, profile, text)
	case IntentNutrition:
		return fmt.Sprintf(nutritionTemplate, g.Nutrition, unresolvedNote(g.Unresolved), profile, text)
	case IntentRecipe:
		if len(g.Recipes) == 0 {
			return fmt.Sprintf(recipeBestEffortTemplate, profile, text)
		}
		return fmt.Sprintf(recipeTemplate, FormatRecipes(g.Recipes), profile, text)
	default:
		return fmt.Sprintf(generalTemplate, profile, text)
	}
}

func unresolvedNote(unresolved []string) string {
	if len(unresolved) == 0 {
		return ""
	}
	return fmt.Sprintf("\nNo reference data was found for: %s.\n", strings.Join(unresolved, ", "))
}

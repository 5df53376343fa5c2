package pipeline

import (
	"context"
	"fmt"
	"strings"

	"nutrivision/llm"
)

// noneSentinel is what the model answers when nothing was found.
const noneSentinel = "none"

// Extractor asks the model to enumerate food mentions in free text.
type Extractor struct {
	model llm.ChatModel
}

func NewExtractor(model llm.ChatModel) *Extractor {
	return &Extractor{model: model}
}

// Extract returns the distinct, normalized mentions in first-seen order.
func (e *Extractor) Extract(ctx context.Context, text string) ([]string, error) {
	return listFromModel(ctx, e.model, extractFoodsPrompt, text)
}

func listFromModel(ctx context.Context, model llm.ChatModel, prompt, text string) ([]string, error) {
	out, err := model.Chat(ctx, []llm.Message{llm.User(fmt.Sprintf(prompt, text))})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return ParseList(out), nil
}

// ParseList sanitizes a comma-separated model answer. A fragment spanning a
// line break keeps only the text before the break.
func ParseList(raw string) []string {
	seen := map[string]bool{}
	var out []string
	for _, frag := range strings.Split(raw, ",") {
		frag = strings.TrimSpace(frag)
		if i := strings.IndexAny(frag, "\r\n"); i >= 0 {
			frag = frag[:i]
		}
		frag = strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(frag), listCutset)))
		if frag == "" || frag == noneSentinel || seen[frag] {
			continue
		}
		seen[frag] = true
		out = append(out, frag)
	}
	return out
}

// listCutset is stripped from both ends of each fragment.
const listCutset = "\"'`[](){}.*-"

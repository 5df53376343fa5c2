// Package recognition talks to the image recognition service and decodes the
// item lists it produces.
package recognition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Macronutrients are per-100g values supplied by the recognizer. Keys follow
// the recognizer's payload.
type Macronutrients struct {
	Kilocalories  *float64 `json:"Kilocalories,omitempty"`
	Protein       *float64 `json:"Protein,omitempty"`
	Carbohydrates *float64 `json:"Carbohydrates,omitempty"`
	Fat           *float64 `json:"Fat,omitempty"`
	Fiber         *float64 `json:"Fiber,omitempty"`
}

func (m *Macronutrients) IsEmpty() bool {
	return m == nil || (m.Kilocalories == nil && m.Protein == nil && m.Carbohydrates == nil && m.Fat == nil && m.Fiber == nil)
}

// Item is one recognized food.
type Item struct {
	Name           string          `json:"name"`
	Confidence     float64         `json:"confidence"`
	Macronutrients *Macronutrients `json:"macronutrients,omitempty"`
}

// ParsePayload decodes a recognition result. It accepts strict JSON and the
// Python repr form (single quotes, None/True/False). A payload that decodes to
// anything other than a list yields no items and no error.
func ParsePayload(raw string) ([]Item, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var v any
	data := []byte(raw)
	if err := json.Unmarshal(data, &v); err != nil {
		data = []byte(normalizePythonLiteral(raw))
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode recognition payload: %w", err)
		}
	}

	if _, ok := v.([]any); !ok {
		return nil, nil
	}

	var items []Item
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode recognition items: %w", err)
	}

	out := items[:0]
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// normalizePythonLiteral rewrites single-quoted strings as JSON strings and
// the bare words None, True and False as their JSON equivalents.
func normalizePythonLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' || r == '"':
			quote := r
			b.WriteByte('"')
			for i++; i < len(runes) && runes[i] != quote; i++ {
				c := runes[i]
				if c == '\\' && i+1 < len(runes) {
					i++
					if runes[i] == '\'' {
						b.WriteRune('\'')
					} else {
						b.WriteRune('\\')
						b.WriteRune(runes[i])
					}
					continue
				}
				if c == '"' {
					b.WriteString(`\"`)
					continue
				}
				b.WriteRune(c)
			}
			b.WriteByte('"')
		case unicode.IsLetter(r):
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			switch word := string(runes[i:j]); word {
			case "None":
				b.WriteString("null")
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			default:
				b.WriteString(word)
			}
			i = j - 1
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Filter drops items whose confidence is below threshold.
func Filter(items []Item, threshold float64) []Item {
	var out []Item
	for _, it := range items {
		if it.Confidence >= threshold {
			out = append(out, it)
		}
	}
	return out
}

// Summary renders the items as the text shown above an image-grounded reply.
func Summary(items []Item) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (confidence %.2f)\n", it.Name, it.Confidence)
		if it.Macronutrients.IsEmpty() {
			b.WriteString("Macronutrients: not available\n")
			continue
		}
		m := it.Macronutrients
		fmt.Fprintf(&b, "Kilocalories: %s\n", formatValue(m.Kilocalories))
		fmt.Fprintf(&b, "Protein: %s\n", formatValue(m.Protein))
		fmt.Fprintf(&b, "Carbohydrates: %s\n", formatValue(m.Carbohydrates))
		fmt.Fprintf(&b, "Fat: %s\n", formatValue(m.Fat))
		fmt.Fprintf(&b, "Fiber: %s\n", formatValue(m.Fiber))
	}
	return b.String()
}

func formatValue(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.3f", *v)
}

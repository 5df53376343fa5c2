// Package llm defines the chat message shape shared by every model provider.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// ChatModel turns an ordered transcript into the next assistant message.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Size returns the number of content bytes in messages.
func Size(messages []Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n
}

// TracedModel wraps a ChatModel with one span per call.
type TracedModel struct {
	next   ChatModel
	tracer trace.Tracer
	name   string
}

func NewTracedModel(next ChatModel, tracer trace.Tracer, name string) *TracedModel {
	return &TracedModel{next: next, tracer: tracer, name: name}
}

func (m *TracedModel) Chat(ctx context.Context, messages []Message) (string, error) {
	ctx, span := m.tracer.Start(ctx, fmt.Sprintf("%s.Chat", m.name), trace.WithAttributes(
		attribute.Int("messages_count", len(messages)),
		attribute.Int("prompt_size_bytes", Size(messages)),
	))
	defer span.End()

	start := time.Now()
	out, err := m.next.Chat(ctx, messages)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Float64("llm_response_time_seconds", elapsed.Seconds()))
	if err != nil {
		span.SetStatus(codes.Error, "LLM chat failed")
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.Int("response_content_length", len(out)))
	slog.Debug("LLM_CLIENT: Chat completed", "provider", m.name, "elapsed_ms", elapsed.Milliseconds())
	return out, nil
}

// Package mock is a deterministic ChatModel. It only serves as a learning aid
// and test double; real models may not be so kind.
package mock

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"nutrivision/llm"
)

// Rule answers any transcript whose last message contains Contains.
type Rule struct {
	Contains string
	Reply    string
	Err      error
}

type Client struct {
	mu       sync.Mutex
	rules    []Rule
	fallback string
	calls    [][]llm.Message
}

// NewClient returns a client that tries rules in order and falls back to
// fallback when none applies.
func NewClient(fallback string, rules ...Rule) *Client {
	return &Client{rules: rules, fallback: fallback}
}

func (c *Client) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slog.Info("LLM_CLIENT: Invoked", "provider", "mock", "messages_len", len(messages))

	cp := make([]llm.Message, len(messages))
	copy(cp, messages)
	c.calls = append(c.calls, cp)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	var last string
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	for _, r := range c.rules {
		if strings.Contains(last, r.Contains) {
			if r.Err != nil {
				return "", r.Err
			}
			return r.Reply, nil
		}
	}
	return c.fallback, nil
}

// Calls returns every transcript received so far.
func (c *Client) Calls() [][]llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]llm.Message, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns the number of Chat invocations.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

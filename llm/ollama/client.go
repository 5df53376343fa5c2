// Package ollama is a ChatModel backed by the Ollama /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"nutrivision"
	"nutrivision/llm"
)

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
}

type Client struct {
	endpoint   string
	model      string
	httpClient nutrivision.HTTPClient
	options    options
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	Temperature  float64
	TopP         float64
	HTTPClient   nutrivision.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, errors.New("missing model id")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	o := options{
		Temperature:   0.2,
		TopP:          0.9,
		RepeatPenalty: 1.05,
		NumCtx:        8192,
	}
	if opts.Temperature > 0 {
		o.Temperature = opts.Temperature
	}
	if opts.TopP > 0 {
		o.TopP = opts.TopP
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options:    o,
	}, nil
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options,omitempty"`
}

type wireResponse struct {
	Message wireMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// Chat sends the transcript with streaming disabled and returns the
// assistant content verbatim.
func (c *Client) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "provider", "ollama", "messages_len", len(messages))

	reqBytes, err := json.Marshal(wireRequest{
		Model:    c.model,
		Messages: buildMessages(messages),
		Stream:   false,
		Options:  c.options,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM_CLIENT: %s: %s", resp.Status, string(body))
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		slog.Warn("LLM_CLIENT: decode failed", "err", err, "body", string(body))
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if wr.Error != "" {
		return "", fmt.Errorf("ollama: %s", wr.Error)
	}

	return strings.TrimSpace(wr.Message.Content), nil
}

// buildMessages keeps system, user and assistant roles and coerces anything
// else to user.
func buildMessages(in []llm.Message) []wireMessage {
	out := make([]wireMessage, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
			out = append(out, wireMessage{Role: m.Role, Content: m.Content})
		default:
			slog.Warn("ollama: unknown role, coercing to user", "role", m.Role)
			out = append(out, wireMessage{Role: llm.RoleUser, Content: m.Content})
		}
	}
	return out
}

// Package slack posts assistant replies to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// MaxTextLen is the longest text Slack renders in a single message.
const MaxTextLen = 40000

const truncationMarker = "\n…(truncated)"

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	webhookURL string
	username   string
	httpClient doer
}

func NewClient(webhookURL string, httpClient doer) *Client {
	return &Client{
		webhookURL: webhookURL,
		username:   "NutriVision",
		httpClient: httpClient,
	}
}

type payload struct {
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username"`
	Text     string `json:"text"`
	Markdown bool   `json:"mrkdwn"`
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	body, err := json.Marshal(payload{
		Channel:  channel,
		Username: c.username,
		Text:     Truncate(message, MaxTextLen),
		Markdown: true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// Truncate shortens s to at most n runes, marking the cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	keep := n - utf8.RuneCountInString(truncationMarker)
	if keep < 0 {
		keep = 0
	}
	return string([]rune(s)[:keep]) + truncationMarker
}

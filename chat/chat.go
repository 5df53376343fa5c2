// Package chat persists chat sessions and their append-only turns.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrSessionExists   = errors.New("chat session already exists")
)

// Turn is one user message and the reply it produced. Turns are never
// modified once appended.
type Turn struct {
	UserMessage      string    `json:"user_message"`
	ImageRef         string    `json:"image_ref,omitempty"`
	ImageSummary     string    `json:"image_summary,omitempty"`
	NutritionSummary string    `json:"nutrition_summary,omitempty"`
	AssistantReply   string    `json:"assistant_reply"`
	Intent           string    `json:"intent"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session is a named conversation owned by one user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Turns     []Turn    `json:"turns,omitempty"`
}

// Store is keyed by (userID, sessionID). Every Append is atomic per key.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, userID, sessionID string) (Session, error)
	// List returns the user's sessions, oldest first, without turns.
	List(ctx context.Context, userID string) ([]Session, error)
	Append(ctx context.Context, userID, sessionID string, t Turn) error
	// LastTurns returns at most n of the most recent turns, oldest first.
	LastTurns(ctx context.Context, userID, sessionID string, n int) ([]Turn, error)
	// Delete removes the session and returns how many turns it held.
	Delete(ctx context.Context, userID, sessionID string) (int, error)
}

const maxNameRunes = 40

// NewSession returns a session with a fresh id. An empty name is derived
// from firstMessage.
func NewSession(userID, name, firstMessage string) Session {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DeriveName(firstMessage)
	}
	return Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// DeriveName shortens a message to a single-line session title.
func DeriveName(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	line = strings.Join(strings.Fields(line), " ")
	if line == "" {
		return "New chat"
	}
	if utf8.RuneCountInString(line) <= maxNameRunes {
		return line
	}
	r := []rune(line)
	return strings.TrimSpace(string(r[:maxNameRunes])) + "..."
}

func tail(turns []Turn, n int) []Turn {
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

package nutrivision

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// TurnLogger is the interface for the per-turn resolution audit trail.
type TurnLogger interface {
	LogTurn(turn TurnLog) error
}

// NewTurnLogFilePath returns a file path based on a cleaned up model name or id to make it easier to identify logs produced with various models.
func NewTurnLogFilePath(model string) string {
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		strings.ReplaceAll(strings.ToLower(model), ":", "_"),
	)
}

// TurnLog represents the resolution of a single chat turn.
type TurnLog struct {
	Timestamp   time.Time      `json:"timestamp"`
	UserID      string         `json:"user_id"`
	ChatID      string         `json:"chat_id"`
	Intent      string         `json:"intent"`
	Mentions    []string       `json:"mentions,omitempty"`
	Resolved    []ResolvedLog  `json:"resolved,omitempty"`
	Unresolved  []string       `json:"unresolved,omitempty"`
	Recipes     []string       `json:"recipes,omitempty"`
	LLMCalls    int            `json:"llm_calls"`
	PromptBytes int            `json:"prompt_bytes"`
	Reply       string         `json:"reply,omitempty"`
	Error       string         `json:"error,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// ResolvedLog records which reference food a mention was matched to and by which tier.
type ResolvedLog struct {
	Mention string `json:"mention"`
	FoodID  string `json:"food_id"`
	Name    string `json:"name"`
	Tier    string `json:"tier"`
}

// FileTurnLogger accumulates turns and writes them to a file on Flush.
// Suited to one-shot runs; long-running servers should use a LineTurnLogger.
type FileTurnLogger struct {
	mu     sync.Mutex
	turns  []TurnLog
	writer io.Writer
}

// NewFileTurnLogger creates a new file-based turn logger
func NewFileTurnLogger(writer io.Writer) *FileTurnLogger {
	return &FileTurnLogger{
		turns:  make([]TurnLog, 0),
		writer: writer,
	}
}

// LogTurn buffers the turn (does not flush immediately)
func (l *FileTurnLogger) LogTurn(turn TurnLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, turn)
	return nil
}

// Flush writes all accumulated turns to the writer
func (l *FileTurnLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"resolution_session": map[string]any{
			"timestamp": time.Now(),
			"turns":     l.turns,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal turn log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write turn log: %w", err)
	}

	l.turns = l.turns[:0]
	return nil
}

// NoOpTurnLogger discards all turns.
type NoOpTurnLogger struct{}

func NewNoOpTurnLogger() *NoOpTurnLogger {
	return &NoOpTurnLogger{}
}

func (nop *NoOpTurnLogger) LogTurn(turn TurnLog) error {
	return nil
}

// LineTurnLogger writes each turn as one JSON line as soon as it is logged,
// so nothing accumulates in memory.
type LineTurnLogger struct {
	mu  sync.Mutex
	out io.Writer
}

func NewLineTurnLogger(w io.Writer) *LineTurnLogger {
	return &LineTurnLogger{out: w}
}

// NewStdoutTurnLogger logs to stdout (for Lambda/CloudWatch).
func NewStdoutTurnLogger() *LineTurnLogger {
	return NewLineTurnLogger(os.Stdout)
}

func (l *LineTurnLogger) LogTurn(turn TurnLog) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprintln(l.out, string(data)); err != nil {
		return fmt.Errorf("failed to write turn log: %w", err)
	}
	return nil
}

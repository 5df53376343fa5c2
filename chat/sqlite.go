package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps sessions in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS chat_sessions (
        user_id TEXT NOT NULL,
        id TEXT NOT NULL,
        name TEXT NOT NULL,
        created_at TEXT NOT NULL,
        PRIMARY KEY (user_id, id)
    );

    CREATE TABLE IF NOT EXISTS chat_turns (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        session_id TEXT NOT NULL,
        user_message TEXT NOT NULL,
        image_ref TEXT NOT NULL DEFAULT '',
        image_summary TEXT NOT NULL DEFAULT '',
        nutrition_summary TEXT NOT NULL DEFAULT '',
        assistant_reply TEXT NOT NULL,
        intent TEXT NOT NULL,
        created_at TEXT NOT NULL,
        FOREIGN KEY (user_id, session_id) REFERENCES chat_sessions(user_id, id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_chat_turns_session ON chat_turns(user_id, session_id, seq);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (user_id, id, name, created_at) VALUES (?, ?, ?, ?)`,
		sess.UserID, sess.ID, sess.Name, formatTime(sess.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrSessionExists
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID, sessionID string) (Session, error) {
	sess, err := s.session(ctx, s.db, userID, sessionID)
	if err != nil {
		return Session{}, err
	}
	turns, err := s.turns(ctx, userID, sessionID, 0)
	if err != nil {
		return Session{}, err
	}
	sess.Turns = turns
	return sess, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM chat_sessions WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess := Session{UserID: userID}
		var createdAt string
		if err := rows.Scan(&sess.ID, &sess.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if sess.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, userID, sessionID string, t Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.session(ctx, tx, userID, sessionID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO chat_turns (user_id, session_id, user_message, image_ref, image_summary, nutrition_summary, assistant_reply, intent, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, sessionID, t.UserMessage, t.ImageRef, t.ImageSummary, t.NutritionSummary,
		t.AssistantReply, t.Intent, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) LastTurns(ctx context.Context, userID, sessionID string, n int) ([]Turn, error) {
	if _, err := s.session(ctx, s.db, userID, sessionID); err != nil {
		return nil, err
	}
	return s.turns(ctx, userID, sessionID, n)
}

func (s *SQLiteStore) Delete(ctx context.Context, userID, sessionID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.session(ctx, tx, userID, sessionID); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM chat_turns WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete turns: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE user_id = ? AND id = ?`, userID, sessionID); err != nil {
		return 0, fmt.Errorf("failed to delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(removed), nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) session(ctx context.Context, q queryer, userID, sessionID string) (Session, error) {
	sess := Session{UserID: userID, ID: sessionID}
	var createdAt string
	err := q.QueryRowContext(ctx,
		`SELECT name, created_at FROM chat_sessions WHERE user_id = ? AND id = ?`, userID, sessionID).
		Scan(&sess.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to query session: %w", err)
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// turns returns the last n turns oldest first, or all of them when n <= 0.
func (s *SQLiteStore) turns(ctx context.Context, userID, sessionID string, n int) ([]Turn, error) {
	limit := -1
	if n > 0 {
		limit = n
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT user_message, image_ref, image_summary, nutrition_summary, assistant_reply, intent, created_at
        FROM (
            SELECT * FROM chat_turns WHERE user_id = ? AND session_id = ? ORDER BY seq DESC LIMIT ?
        ) ORDER BY seq ASC`, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	out := []Turn{}
	for rows.Next() {
		var t Turn
		var createdAt string
		if err := rows.Scan(&t.UserMessage, &t.ImageRef, &t.ImageSummary, &t.NutritionSummary,
			&t.AssistantReply, &t.Intent, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

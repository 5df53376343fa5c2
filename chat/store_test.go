package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	mr := miniredis.RunT(t)
	rs := NewRedisStore(NewRedisClient(mr.Addr(), "", 0))
	t.Cleanup(func() { rs.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
		"redis":  rs,
	}
}

func turn(i int) Turn {
	return Turn{
		UserMessage:    fmt.Sprintf("message %d", i),
		AssistantReply: fmt.Sprintf("reply %d", i),
		Intent:         "GENERAL",
		CreatedAt:      base.Add(time.Duration(i) * time.Minute),
	}
}

func TestStore_CreateGetList(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Create(ctx, Session{ID: "b", UserID: "u1", Name: "second", CreatedAt: base.Add(time.Hour)}))
			require.NoError(t, s.Create(ctx, Session{ID: "a", UserID: "u1", Name: "first", CreatedAt: base}))
			require.NoError(t, s.Create(ctx, Session{ID: "c", UserID: "u2", Name: "other user", CreatedAt: base}))

			err := s.Create(ctx, Session{ID: "a", UserID: "u1", Name: "dup", CreatedAt: base})
			require.ErrorIs(t, err, ErrSessionExists)

			got, err := s.Get(ctx, "u1", "a")
			require.NoError(t, err)
			assert.Equal(t, "first", got.Name)
			assert.True(t, base.Equal(got.CreatedAt))
			assert.Empty(t, got.Turns)

			_, err = s.Get(ctx, "u2", "a")
			require.ErrorIs(t, err, ErrSessionNotFound)

			list, err := s.List(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "a", list[0].ID)
			assert.Equal(t, "b", list[1].ID)

			list, err = s.List(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestStore_AppendAndLastTurns(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, Session{ID: "s", UserID: "u", Name: "n", CreatedAt: base}))

			for i := 1; i <= 12; i++ {
				require.NoError(t, s.Append(ctx, "u", "s", turn(i)))
			}

			last, err := s.LastTurns(ctx, "u", "s", 10)
			require.NoError(t, err)
			require.Len(t, last, 10)
			assert.Equal(t, "message 3", last[0].UserMessage)
			assert.Equal(t, "message 12", last[9].UserMessage)
			assert.True(t, turn(3).CreatedAt.Equal(last[0].CreatedAt))

			all, err := s.LastTurns(ctx, "u", "s", 0)
			require.NoError(t, err)
			assert.Len(t, all, 12)

			full, err := s.Get(ctx, "u", "s")
			require.NoError(t, err)
			assert.Len(t, full.Turns, 12)

			err = s.Append(ctx, "u", "missing", turn(1))
			require.ErrorIs(t, err, ErrSessionNotFound)

			_, err = s.LastTurns(ctx, "u", "missing", 10)
			require.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestStore_ColonInIDsDoesNotCollide(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, Session{ID: "c", UserID: "a:b", Name: "first", CreatedAt: base}))
			require.NoError(t, s.Create(ctx, Session{ID: "b:c", UserID: "a", Name: "second", CreatedAt: base}))
			require.NoError(t, s.Append(ctx, "a:b", "c", turn(1)))

			got, err := s.Get(ctx, "a", "b:c")
			require.NoError(t, err)
			assert.Equal(t, "second", got.Name)
			assert.Empty(t, got.Turns)

			got, err = s.Get(ctx, "a:b", "c")
			require.NoError(t, err)
			assert.Equal(t, "first", got.Name)
			assert.Len(t, got.Turns, 1)
		})
	}
}

func TestRedisKeys_ShareUserHashTag(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"meta", metaKey("a:b", "c"), "chat:{a:b}:c:meta"},
		{"turns", turnsKey("a:b", "c"), "chat:{a:b}:c:turns"},
		{"index", indexKey("a:b"), "chat:{a:b}:sessions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key)
		})
	}
	assert.NotEqual(t, metaKey("a:b", "c"), metaKey("a", "b:c"))
}

func TestStore_Delete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Delete(ctx, "u", "never-created")
			require.ErrorIs(t, err, ErrSessionNotFound)

			require.NoError(t, s.Create(ctx, Session{ID: "empty", UserID: "u", Name: "n", CreatedAt: base}))
			n, err := s.Delete(ctx, "u", "empty")
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			require.NoError(t, s.Create(ctx, Session{ID: "full", UserID: "u", Name: "n", CreatedAt: base}))
			require.NoError(t, s.Append(ctx, "u", "full", turn(1)))
			require.NoError(t, s.Append(ctx, "u", "full", turn(2)))
			n, err = s.Delete(ctx, "u", "full")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			_, err = s.Get(ctx, "u", "full")
			require.ErrorIs(t, err, ErrSessionNotFound)
			list, err := s.List(ctx, "u")
			require.NoError(t, err)
			assert.Empty(t, list)

			_, err = s.Delete(ctx, "u", "full")
			require.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestStore_ConcurrentAppend(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, Session{ID: "s", UserID: "u", Name: "n", CreatedAt: base}))

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Append(ctx, "u", "s", turn(i)))
				}(i)
			}
			wg.Wait()

			all, err := s.LastTurns(ctx, "u", "s", 0)
			require.NoError(t, err)
			assert.Len(t, all, 20)
		})
	}
}

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "name", ARGV[1], "created_at", ARGV[2])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[4])
return 1
`)

	appendScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("RPUSH", KEYS[2], ARGV[1])
`)

	deleteScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local n = redis.call("LLEN", KEYS[2])
redis.call("DEL", KEYS[1], KEYS[2])
redis.call("ZREM", KEYS[3], ARGV[1])
return n
`)
)

// RedisStore keeps each session as a meta hash plus a list of JSON turns,
// indexed per user by a sorted set scored on creation time.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// The user id is a hash tag: it keeps one user's keys in a single cluster
// slot and delimits ids that contain ':'.
func metaKey(userID, sessionID string) string {
	return fmt.Sprintf("chat:{%s}:%s:meta", userID, sessionID)
}

func turnsKey(userID, sessionID string) string {
	return fmt.Sprintf("chat:{%s}:%s:turns", userID, sessionID)
}

func indexKey(userID string) string { return fmt.Sprintf("chat:{%s}:sessions", userID) }

func (r *RedisStore) Create(ctx context.Context, s Session) error {
	created, err := createScript.Run(ctx, r.client,
		[]string{metaKey(s.UserID, s.ID), indexKey(s.UserID)},
		s.Name, formatTime(s.CreatedAt), s.CreatedAt.UnixMilli(), s.ID,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if created == 0 {
		return ErrSessionExists
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, userID, sessionID string) (Session, error) {
	sess, err := r.meta(ctx, userID, sessionID)
	if err != nil {
		return Session{}, err
	}
	raw, err := r.client.LRange(ctx, turnsKey(userID, sessionID), 0, -1).Result()
	if err != nil {
		return Session{}, fmt.Errorf("failed to read turns: %w", err)
	}
	if sess.Turns, err = decodeTurns(raw); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (r *RedisStore) List(ctx context.Context, userID string) ([]Session, error) {
	ids, err := r.client.ZRange(ctx, indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session index: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, metaKey(userID, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	out := make([]Session, 0, len(ids))
	for i, cmd := range cmds {
		sess, err := sessionFromMeta(userID, ids[i], cmd.Val())
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (r *RedisStore) Append(ctx context.Context, userID, sessionID string, t Turn) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode turn: %w", err)
	}
	n, err := appendScript.Run(ctx, r.client,
		[]string{metaKey(userID, sessionID), turnsKey(userID, sessionID)}, data).Int()
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	if n < 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisStore) LastTurns(ctx context.Context, userID, sessionID string, n int) ([]Turn, error) {
	if _, err := r.meta(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	raw, err := r.client.LRange(ctx, turnsKey(userID, sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}
	return decodeTurns(raw)
}

func (r *RedisStore) Delete(ctx context.Context, userID, sessionID string) (int, error) {
	n, err := deleteScript.Run(ctx, r.client,
		[]string{metaKey(userID, sessionID), turnsKey(userID, sessionID), indexKey(userID)}, sessionID).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to delete session: %w", err)
	}
	if n < 0 {
		return 0, ErrSessionNotFound
	}
	return n, nil
}

func (r *RedisStore) meta(ctx context.Context, userID, sessionID string) (Session, error) {
	m, err := r.client.HGetAll(ctx, metaKey(userID, sessionID)).Result()
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}
	return sessionFromMeta(userID, sessionID, m)
}

func sessionFromMeta(userID, sessionID string, m map[string]string) (Session, error) {
	if len(m) == 0 {
		return Session{}, ErrSessionNotFound
	}
	created, err := time.Parse(time.RFC3339Nano, m["created_at"])
	if err != nil {
		return Session{}, fmt.Errorf("failed to parse session timestamp: %w", err)
	}
	return Session{ID: sessionID, UserID: userID, Name: m["name"], CreatedAt: created}, nil
}

func decodeTurns(raw []string) ([]Turn, error) {
	out := make([]Turn, 0, len(raw))
	for _, s := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, fmt.Errorf("failed to decode turn: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps active-session records in Redis. Each record expires
// with its token, so no pruning is needed.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

type redisSessionPayload struct {
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRedisSessionStore constructs a Redis-backed SessionStore.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "session:", now: time.Now}
}

// CreateSession stores the record with a TTL ending at the token's expiry.
func (s *RedisSessionStore) CreateSession(ctx context.Context, session Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("auth: session already expired")
	}
	data, err := json.Marshal(redisSessionPayload{UserID: session.UserID, CreatedAt: session.CreatedAt.UTC()})
	if err != nil {
		return err
	}
	created, err := s.client.SetNX(ctx, s.key(session.ID), data, ttl).Result()
	if err != nil {
		return err
	}
	if !created {
		return errors.New("auth: session id collision")
	}
	return nil
}

// DeleteSession removes the record and reports whether it existed.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n > 0, nil
}

// SessionExists reports whether a live record exists for id.
func (s *RedisSessionStore) SessionExists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + id
}

var _ SessionStore = (*RedisSessionStore)(nil)

// Package session provides redis-backed refresh session storage. Each entry
// holds the actor snapshot captured at sign-in so a refresh can re-issue an
// access token without consulting a user directory.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marginalia/api/internal/store"
)

// tokenData is the JSON shape stored per refresh token hash.
type tokenData struct {
	ActorID   string    `json:"actor_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore implements refresh session storage using Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "refresh:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "refresh:"}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// Save stores a refresh session for the actor until expiresAt.
func (s *RedisStore) Save(ctx context.Context, tokenHash string, actor store.Actor, expiresAt time.Time) error {
	data := tokenData{
		ActorID:   actor.ID,
		Name:      actor.Name,
		Email:     actor.Email,
		Role:      actor.Role,
		Color:     actor.Color,
		CreatedAt: time.Now(),
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if err := s.client.Set(ctx, s.key(tokenHash), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// Lookup resolves a refresh token hash back to its actor snapshot.
func (s *RedisStore) Lookup(ctx context.Context, tokenHash string) (store.Actor, error) {
	jsonData, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if err == redis.Nil {
		return store.Actor{}, fmt.Errorf("session not found or expired")
	}
	if err != nil {
		return store.Actor{}, fmt.Errorf("lookup refresh session: %w", err)
	}

	var data tokenData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return store.Actor{}, fmt.Errorf("unmarshal session data: %w", err)
	}
	if data.Role == "" {
		data.Role = "commenter"
	}
	return store.Actor{
		ID:    data.ActorID,
		Name:  data.Name,
		Email: data.Email,
		Role:  data.Role,
		Color: data.Color,
	}, nil
}

// Revoke deletes a refresh session.
func (s *RedisStore) Revoke(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

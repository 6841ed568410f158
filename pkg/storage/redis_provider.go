package storage

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisEphemeralStore implements the EphemeralStore interface using Redis.
// Live logs and wallet markers survive process restarts but are still
// transient: flush deletes them.
type RedisEphemeralStore struct {
	client *redis.Client
}

// RedisConfig contains configuration for the Redis ephemeral store
type RedisConfig struct {
	// Addr is the Redis address (host:port)
	Addr string `json:"addr"`

	// Password for the Redis server, if any
	Password string `json:"password"`

	// DB is the Redis database number
	DB int `json:"db"`
}

// NewRedisEphemeralStore creates a new Redis-backed ephemeral store
func NewRedisEphemeralStore(config RedisConfig) (*RedisEphemeralStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Test the connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisEphemeralStore{client: client}, nil
}

// NewRedisEphemeralStoreFromClient wraps an existing Redis client. Used by
// tests that point the store at a miniredis instance.
func NewRedisEphemeralStoreFromClient(client *redis.Client) *RedisEphemeralStore {
	return &RedisEphemeralStore{client: client}
}

// Get retrieves the value for a key
func (s *RedisEphemeralStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	return value, nil
}

// Put stores the value for a key. No expiration: the event logger deletes
// documents explicitly on flush.
func (s *RedisEphemeralStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// Delete removes a key
func (s *RedisEphemeralStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}

	return nil
}

// Close cleans up resources
func (s *RedisEphemeralStore) Close() error {
	return s.client.Close()
}

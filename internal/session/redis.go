package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/crypto"
)

var _ Store = (*RedisStore)(nil)

// RedisStore persists the session in redis, encrypted at rest. Used by
// deployments where the login CLI and the dashboard share a session.
type RedisStore struct {
	client    *redis.Client
	key       string
	encryptor *crypto.Encryptor
}

// NewRedisStore creates a redis-backed store. The connection is verified
// immediately so a misconfigured address fails at startup.
func NewRedisStore(ctx context.Context, addr, password string, db int, key string, encryptor *crypto.Encryptor) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, key: key, encryptor: encryptor}, nil
}

// Get reads and decrypts the stored session
func (r *RedisStore) Get(ctx context.Context) (*Session, error) {
	sealed, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session from redis: %w", err)
	}

	plaintext, err := r.encryptor.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypting stored session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return nil, fmt.Errorf("decoding stored session: %w", err)
	}
	return &s, nil
}

// Set encrypts and writes the session, replacing any previous value
func (r *RedisStore) Set(ctx context.Context, s *Session) error {
	plaintext, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	sealed, err := r.encryptor.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, sealed, 0).Err(); err != nil {
		return fmt.Errorf("writing session to redis: %w", err)
	}
	return nil
}

// Clear removes the session key
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("deleting session from redis: %w", err)
	}
	return nil
}

// Close releases the redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

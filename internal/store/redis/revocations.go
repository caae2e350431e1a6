package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"slotbook/backend/internal/store"
)

const revokedKeyPrefix = "slotbook:revoked:"

// Open connects to the Redis instance at redisURL and verifies it answers.
func Open(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

type RevocationStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client, now: time.Now}
}

// Revoke stores tokenID with a TTL equal to the token's remaining lifetime.
// Tokens that have already expired need no entry.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", store.ErrPersistence, err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis exists: %w", store.ErrPersistence, err)
	}
	return n > 0, nil
}

// NopRevocationStore is used when no Redis is configured: nothing is ever
// revoked and tokens live until they expire.
type NopRevocationStore struct{}

func (NopRevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return nil
}

func (NopRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return false, nil
}

package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNopRevocationStore(t *testing.T) {
	var s NopRevocationStore
	if err := s.Revoke(context.Background(), "jti", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	revoked, err := s.IsRevoked(context.Background(), "jti")
	if err != nil || revoked {
		t.Fatalf("IsRevoked = %v, %v", revoked, err)
	}
}

func TestRedisIntegration_Revocation(t *testing.T) {
	redisURL := strings.TrimSpace(os.Getenv("SLOTBOOK_TEST_REDIS_URL"))
	if redisURL == "" {
		t.Skip("SLOTBOOK_TEST_REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Open(ctx, redisURL)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	s := NewRevocationStore(client)
	jti := uuid.NewString()
	t.Cleanup(func() {
		_ = client.Del(context.Background(), revokedKeyPrefix+jti).Err()
	})

	revoked, err := s.IsRevoked(ctx, jti)
	if err != nil || revoked {
		t.Fatalf("before revoke: %v, %v", revoked, err)
	}

	if err := s.Revoke(ctx, jti, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	revoked, err = s.IsRevoked(ctx, jti)
	if err != nil || !revoked {
		t.Fatalf("after revoke: %v, %v", revoked, err)
	}

	ttl, err := client.TTL(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		t.Fatalf("TTL error: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %s, want (0, 1m]", ttl)
	}

	expired := uuid.NewString()
	if err := s.Revoke(ctx, expired, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke(expired) error: %v", err)
	}
	revoked, err = s.IsRevoked(ctx, expired)
	if err != nil || revoked {
		t.Fatalf("expired token stored: %v, %v", revoked, err)
	}
}

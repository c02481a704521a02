package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisCache(rdb, ttl), mr
}

func TestRedisCache_StoreSent_Success(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t, 10*time.Second)

	ctx := context.Background()
	sentAt := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)

	if err := cache.StoreSent(ctx, "wamid.123", 42, sentAt); err != nil {
		t.Fatalf("StoreSent() error: %v", err)
	}

	key := "wa:sent:wamid.123"

	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}

	ttlRemaining := mr.TTL(key)
	if ttlRemaining <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttlRemaining)
	}

	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", key, err)
	}

	var got SentEntry
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}

	if got.RecipientID != 42 {
		t.Fatalf("expected RecipientID 42, got %d", got.RecipientID)
	}
	if !got.SentAt.Equal(sentAt.UTC()) {
		t.Fatalf("expected SentAt %v, got %v", sentAt.UTC(), got.SentAt)
	}
}

func TestRedisCache_LookupSent(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, err := cache.LookupSent(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := cache.StoreSent(ctx, "wamid.1", 1, time.Now()); err != nil {
		t.Fatalf("first StoreSent() error: %v", err)
	}
	if err := cache.StoreSent(ctx, "wamid.1", 2, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("second StoreSent() error: %v", err)
	}

	got, err := cache.LookupSent(ctx, "wamid.1")
	if err != nil {
		t.Fatalf("LookupSent() error: %v", err)
	}
	if got.RecipientID != 2 || got.RemoteMessageID != "wamid.1" {
		t.Fatalf("expected overwritten entry, got %+v", got)
	}
}

func TestRedisCache_StoreSent_Expires(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	if err := cache.StoreSent(ctx, "wamid.2", 5, time.Now()); err != nil {
		t.Fatalf("StoreSent() error: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := cache.LookupSent(ctx, "wamid.2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected entry to expire, got %v", err)
	}
}

func TestRedisCache_StoreSent_RejectsEmptyID(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Second)
	if err := cache.StoreSent(context.Background(), "", 1, time.Now()); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestRedisCache_StoreSent_ContextCanceled(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cache.StoreSent(ctx, "x", 1, time.Now())
	if err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}

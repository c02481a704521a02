package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache remembers which recipient a provider message id belongs to, so
// delivery callbacks can be routed without a database round trip.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func sentKey(remoteMessageID string) string {
	return "wa:sent:" + remoteMessageID
}

func (c *RedisCache) StoreSent(ctx context.Context, remoteMessageID string, recipientID int64, sentAt time.Time) error {
	if remoteMessageID == "" {
		return errors.New("remote message id must not be empty")
	}
	val := SentEntry{
		RemoteMessageID: remoteMessageID,
		RecipientID:     recipientID,
		SentAt:          sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, sentKey(remoteMessageID), b, c.ttl).Err()
}

func (c *RedisCache) LookupSent(ctx context.Context, remoteMessageID string) (SentEntry, error) {
	raw, err := c.rdb.Get(ctx, sentKey(remoteMessageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SentEntry{}, ErrNotFound
	}
	if err != nil {
		return SentEntry{}, err
	}

	var e SentEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return SentEntry{}, err
	}
	return e, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

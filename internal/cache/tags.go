package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TagCatalog = "catalog"
	TagOrders  = "orders"
)

func ProductTag(productID int64) string { return fmt.Sprintf("product:%d", productID) }

func RatingsTag(productID int64) string { return fmt.Sprintf("ratings:%d", productID) }

func UserOrdersTag(userID string) string { return fmt.Sprintf("orders:user:%s", userID) }

// TagCache stores JSON views under a key and indexes each key under its tags, so that
// invalidating a tag drops every view that depends on it.
type TagCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewTagCache(client *redis.Client, baseTTL time.Duration) *TagCache {
	return &TagCache{client: client, baseTTL: baseTTL}
}

func viewKey(key string) string { return "view:" + key }

func tagKey(tag string) string { return "tag:" + tag }

// Get decodes the cached view into dest, or returns ErrCacheMiss.
func (c *TagCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, viewKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal view failed: %w", err)
	}
	return nil
}

func (c *TagCache) Set(ctx context.Context, key string, value any, tags ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal view failed: %w", err)
	}

	ttl := jitteredTTL(c.baseTTL)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, viewKey(key), data, ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, tagKey(tag), viewKey(key))
			// The index must outlive every view it points at.
			pipe.Expire(ctx, tagKey(tag), c.baseTTL+maxJitter)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate deletes every view indexed under any of tags, and the tag indexes themselves.
func (c *TagCache) Invalidate(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}

	keys := make([]string, 0, len(tags))
	for _, tag := range tags {
		members, err := c.client.SMembers(ctx, tagKey(tag)).Result()
		if err != nil {
			return fmt.Errorf("redis smembers failed: %w", err)
		}
		keys = append(keys, members...)
		keys = append(keys, tagKey(tag))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

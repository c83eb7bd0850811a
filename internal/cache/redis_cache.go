package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lucashu/marketchat/internal/config"
	"github.com/lucashu/marketchat/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// InboxCacheResult is one cached page of a user's conversation inbox.
type InboxCacheResult struct {
	Conversations []domain.Conversation `json:"conversations"`
	Total         int                   `json:"total"`
}

// InboxCache caches inbox pages per user. Invalidated on every send, so a
// short TTL is enough.
type InboxCache interface {
	BuildKey(userID string, page, pageSize int) string
	Get(ctx context.Context, key string) (*InboxCacheResult, error)
	Set(ctx context.Context, key string, result *InboxCacheResult, ttl time.Duration) error
	Invalidate(ctx context.Context, userIDs ...string) error
	Close() error
}

// RedisInboxCache implements InboxCache on go-redis.
type RedisInboxCache struct {
	client *redis.Client
	prefix string
}

func NewRedisInboxCache(cfg config.RedisConfig, prefix string) (*RedisInboxCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisInboxCache{client: client, prefix: prefix}, nil
}

func (c *RedisInboxCache) BuildKey(userID string, page, pageSize int) string {
	return fmt.Sprintf("%s:%s:%d:%d", c.prefix, userID, page, pageSize)
}

func (c *RedisInboxCache) userPattern(userID string) string {
	return fmt.Sprintf("%s:%s:*", c.prefix, userID)
}

func (c *RedisInboxCache) Get(ctx context.Context, key string) (*InboxCacheResult, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var result InboxCacheResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &result, nil
}

func (c *RedisInboxCache) Set(ctx context.Context, key string, result *InboxCacheResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

// Invalidate drops every cached inbox page for the given users. Called after
// each send so both participants see the fresh summary.
func (c *RedisInboxCache) Invalidate(ctx context.Context, userIDs ...string) error {
	for _, userID := range userIDs {
		iter := c.client.Scan(ctx, 0, c.userPattern(userID), 0).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan redis keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete from redis: %w", err)
			}
		}
	}
	return nil
}

func (c *RedisInboxCache) Close() error {
	return c.client.Close()
}

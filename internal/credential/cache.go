package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const roleKeyPrefix = "identity:roles:"

// RoleCache keeps each identity's role names in Redis for a bounded time.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoleCache creates a Redis-backed role cache.
func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	return &RoleCache{client: client, ttl: ttl}
}

// Get returns the cached role names. The boolean is false on a cache miss.
func (c *RoleCache) Get(ctx context.Context, userID string) ([]string, bool, error) {
	data, err := c.client.Get(ctx, roleKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get roles: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, false, fmt.Errorf("unmarshal roles: %w", err)
	}

	return names, true, nil
}

// Set stores the role names with the configured TTL.
func (c *RoleCache) Set(ctx context.Context, userID string, names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("marshal roles: %w", err)
	}

	if err := c.client.Set(ctx, roleKeyPrefix+userID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set roles: %w", err)
	}

	return nil
}

// Invalidate drops the cached entry for userID.
func (c *RoleCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, roleKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis del roles: %w", err)
	}
	return nil
}

// Ping checks the Redis connection. It backs the readiness check.
func (c *RoleCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

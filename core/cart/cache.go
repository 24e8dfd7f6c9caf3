package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is the server-side read cache for assembled cart payloads.
// Every mutation deletes the entry so the next read rebuilds it from
// the database.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: 15 * time.Minute}
}

func (c *Cache) Get(ctx context.Context, userID string) (*Payload, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached cart: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding cached cart: %w", err)
	}

	return &p, nil
}

func (c *Cache) Set(ctx context.Context, userID string, p *Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding cart for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing cached cart: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidating cached cart: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "cart:" + userID
}

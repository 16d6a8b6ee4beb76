package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	menuKeyPrefix = "menu:"
	itemKeyPrefix = "menu:item:"
)

// Cache keeps upstream menu responses in Redis for ttl.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) Get(ctx context.Context, category string) ([]MenuItem, bool, error) {
	var items []MenuItem
	ok, err := c.get(ctx, menuKeyPrefix+category, &items)
	if !ok || err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (c *Cache) Set(ctx context.Context, category string, items []MenuItem) error {
	return c.set(ctx, menuKeyPrefix+category, items)
}

func (c *Cache) GetItem(ctx context.Context, id string) (*MenuItem, bool, error) {
	var item MenuItem
	ok, err := c.get(ctx, itemKeyPrefix+id, &item)
	if !ok || err != nil {
		return nil, false, err
	}
	return &item, true, nil
}

func (c *Cache) SetItem(ctx context.Context, item *MenuItem) error {
	return c.set(ctx, itemKeyPrefix+item.ID, item)
}

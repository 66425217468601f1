package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/uml-studio/engine/internal/diagram"
)

// ProjectCache stores projected diagrams by project id.
type ProjectCache interface {
	// Get returns the cached view, or ok=false on a miss.
	Get(ctx context.Context, projectID uuid.UUID) (view *diagram.ProjectView, ok bool, err error)
	Set(ctx context.Context, view *diagram.ProjectView) error
	Invalidate(ctx context.Context, projectID uuid.UUID) error
}

type RedisProjectCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ProjectCache = (*RedisProjectCache)(nil)

func NewRedisProjectCache(client *redis.Client, ttl time.Duration) *RedisProjectCache {
	return &RedisProjectCache{client: client, ttl: ttl}
}

func (c *RedisProjectCache) key(projectID uuid.UUID) string {
	return keyPrefix + "project:" + projectID.String()
}

func (c *RedisProjectCache) Get(ctx context.Context, projectID uuid.UUID) (*diagram.ProjectView, bool, error) {
	b, err := c.client.Get(ctx, c.key(projectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached project: %w", err)
	}

	var view diagram.ProjectView
	if err := json.Unmarshal(b, &view); err != nil {
		return nil, false, fmt.Errorf("decode cached project: %w", err)
	}
	return &view, true, nil
}

func (c *RedisProjectCache) Set(ctx context.Context, view *diagram.ProjectView) error {
	b, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode cached project: %w", err)
	}
	if err := c.client.Set(ctx, c.key(view.ID), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached project: %w", err)
	}
	return nil
}

func (c *RedisProjectCache) Invalidate(ctx context.Context, projectID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(projectID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached project: %w", err)
	}
	return nil
}

// NoopProjectCache never stores anything.
type NoopProjectCache struct{}

var _ ProjectCache = NoopProjectCache{}

func (NoopProjectCache) Get(context.Context, uuid.UUID) (*diagram.ProjectView, bool, error) {
	return nil, false, nil
}

func (NoopProjectCache) Set(context.Context, *diagram.ProjectView) error { return nil }

func (NoopProjectCache) Invalidate(context.Context, uuid.UUID) error { return nil }

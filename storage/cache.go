package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// Store is implemented by Tables, Memory and Cache.
type Store interface {
	ListTasks(ctx context.Context, teamID string) ([]domain.Task, error)
	GetTask(ctx context.Context, teamID, id string) (domain.Task, error)
	FindTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch, now time.Time) (domain.Task, bool, error)
	DeleteTask(ctx context.Context, id string) (domain.Task, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	PutUser(ctx context.Context, u domain.User) error
}

// Cache wraps a Store with Redis-backed caching of team task lists and the
// user directory.
type Cache struct {
	base  Store
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Store wrapper using the provided Redis client and TTL.
func NewCache(base Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, teamID string) ([]domain.Task, error) {
	var tasks []domain.Task
	if c.load(ctx, tasksCacheKey(teamID), &tasks) {
		return tasks, nil
	}
	tasks, err := c.base.ListTasks(ctx, teamID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, tasksCacheKey(teamID), tasks)
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, teamID, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, teamID, id)
}

func (c *Cache) FindTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.FindTask(ctx, id)
}

func (c *Cache) CreateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.CreateTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey(t.TeamID))
	return nil
}

func (c *Cache) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch, now time.Time) (domain.Task, bool, error) {
	t, changed, err := c.base.UpdateTask(ctx, id, patch, now)
	if err != nil {
		return domain.Task{}, false, err
	}
	if changed {
		c.evict(ctx, tasksCacheKey(t.TeamID))
	}
	return t, changed, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := c.base.DeleteTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, tasksCacheKey(t.TeamID))
	return t, nil
}

func (c *Cache) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if c.load(ctx, usersCacheKey, &users) {
		return users, nil
	}
	users, err := c.base.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, usersCacheKey, users)
	return users, nil
}

func (c *Cache) PutUser(ctx context.Context, u domain.User) error {
	if err := c.base.PutUser(ctx, u); err != nil {
		return err
	}
	c.evict(ctx, usersCacheKey)
	return nil
}

// Evict drops the cached task list of a team. Used when a change made by
// another instance arrives over pub/sub.
func (c *Cache) Evict(ctx context.Context, teamID string) {
	c.evict(ctx, tasksCacheKey(teamID))
}

func (c *Cache) load(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

const usersCacheKey = "users"

func tasksCacheKey(teamID string) string {
	return "tasks:" + teamID
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/models"
)

type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// CachedStore serves single task and user reads from a cache and drops the
// cached copy on every write that goes through it. All other reads, including
// the ones the consistency engine snapshots, hit the wrapped store.
type CachedStore struct {
	Store
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(store Store, c Cache, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: store, cache: c, ttl: ttl, logger: logger}
}

func taskKey(id string) string {
	return fmt.Sprintf("task:%s", id)
}

func userKey(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func (s *CachedStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var cached models.Task
	if err := s.cache.Get(ctx, taskKey(id), &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.DebugContext(ctx, "cache read failed", "key", taskKey(id), "error", err)
	}

	task, err := s.Store.FindTask(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, taskKey(id), task)
	return task, nil
}

func (s *CachedStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var cached models.User
	if err := s.cache.Get(ctx, userKey(id), &cached); err == nil {
		if cached.PendingTasks == nil {
			cached.PendingTasks = []string{}
		}
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.DebugContext(ctx, "cache read failed", "key", userKey(id), "error", err)
	}

	user, err := s.Store.FindUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, userKey(id), user)
	return user, nil
}

func (s *CachedStore) ReplaceTask(ctx context.Context, task *models.Task) error {
	defer s.invalidate(ctx, taskKey(task.ID))
	return s.Store.ReplaceTask(ctx, task)
}

func (s *CachedStore) DeleteTask(ctx context.Context, id string) error {
	defer s.invalidate(ctx, taskKey(id))
	return s.Store.DeleteTask(ctx, id)
}

func (s *CachedStore) UnassignTasks(ctx context.Context, userID string, ids []string) (int64, error) {
	if ids == nil {
		defer s.invalidatePattern(ctx, taskKey("*"))
	} else {
		defer s.invalidate(ctx, taskKeys(ids)...)
	}
	return s.Store.UnassignTasks(ctx, userID, ids)
}

func (s *CachedStore) ClaimTasks(ctx context.Context, ids []string, userID, userName string) (int64, error) {
	defer s.invalidate(ctx, taskKeys(ids)...)
	return s.Store.ClaimTasks(ctx, ids, userID, userName)
}

func (s *CachedStore) ReplaceUser(ctx context.Context, user *models.User) error {
	defer s.invalidate(ctx, userKey(user.ID))
	return s.Store.ReplaceUser(ctx, user)
}

func (s *CachedStore) DeleteUser(ctx context.Context, id string) error {
	defer s.invalidate(ctx, userKey(id))
	return s.Store.DeleteUser(ctx, id)
}

func (s *CachedStore) AddPendingTask(ctx context.Context, userID, taskID string) error {
	defer s.invalidate(ctx, userKey(userID))
	return s.Store.AddPendingTask(ctx, userID, taskID)
}

func (s *CachedStore) RemovePendingTask(ctx context.Context, userID, taskID string) error {
	defer s.invalidate(ctx, userKey(userID))
	return s.Store.RemovePendingTask(ctx, userID, taskID)
}

func (s *CachedStore) SetPendingTasks(ctx context.Context, userID string, taskIDs []string) error {
	defer s.invalidate(ctx, userKey(userID))
	return s.Store.SetPendingTasks(ctx, userID, taskIDs)
}

func (s *CachedStore) set(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.DebugContext(ctx, "cache write failed", "key", key, "error", err)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), keys...); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
	}
}

func (s *CachedStore) invalidatePattern(ctx context.Context, pattern string) {
	if err := s.cache.DeletePattern(context.WithoutCancel(ctx), pattern); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "pattern", pattern, "error", err)
	}
}

func taskKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKey(id)
	}
	return keys
}

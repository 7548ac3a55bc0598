package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"taskboard/internal/models"
	"taskboard/pkg/logger"
)

// Tasks is a best-effort read cache in front of the task store. The
// database stays authoritative: cache faults are logged, never surfaced.
type Tasks interface {
	Get(ctx context.Context, id int) (models.Task, bool)
	Set(ctx context.Context, task models.Task)
	Invalidate(ctx context.Context, id int)
}

type RedisTasks struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisTasks(client *redis.Client) *RedisTasks {
	return &RedisTasks{Client: client, TTL: time.Hour}
}

func taskKey(id int) string {
	return fmt.Sprintf("task:%d", id)
}

func (c *RedisTasks) Get(ctx context.Context, id int) (models.Task, bool) {
	cached, err := c.Client.Get(ctx, taskKey(id)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.ErrorLogger.Error("Error reading task cache", zap.Error(err))
		}
		return models.Task{}, false
	}
	var task models.Task
	if err := json.Unmarshal([]byte(cached), &task); err != nil {
		logger.ErrorLogger.Error("Error decoding cached task", zap.Error(err))
		return models.Task{}, false
	}
	return task, true
}

func (c *RedisTasks) Set(ctx context.Context, task models.Task) {
	data, err := json.Marshal(task)
	if err != nil {
		logger.ErrorLogger.Error("Error encoding task for cache", zap.Error(err))
		return
	}
	if err := c.Client.Set(ctx, taskKey(task.ID), data, c.TTL).Err(); err != nil {
		logger.ErrorLogger.Error("Error caching task", zap.Error(err))
	}
}

func (c *RedisTasks) Invalidate(ctx context.Context, id int) {
	if err := c.Client.Del(ctx, taskKey(id)).Err(); err != nil {
		logger.ErrorLogger.Error("Error invalidating task cache", zap.Error(err))
	}
}

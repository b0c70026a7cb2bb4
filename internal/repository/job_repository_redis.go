package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docingest-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// DefaultJobTTL 是 Redis 中任务记录的默认保留时间。
const DefaultJobTTL = 24 * time.Hour

type redisJobRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisJobRepository 创建 Redis 任务存储，任务以 JSON 形式保存并在 ttl 后过期。
func NewRedisJobRepository(redisClient *redis.Client, ttl time.Duration) JobRepository {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &redisJobRepository{redisClient: redisClient, ttl: ttl}
}

func jobKey(jobID string) string {
	return "ingest:job:" + jobID
}

func (r *redisJobRepository) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}
	ok, err := r.redisClient.SetNX(ctx, jobKey(job.JobID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("写入任务失败: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: 任务 %s 已存在", model.ErrInvalidArgument, job.JobID)
	}
	return nil
}

func (r *redisJobRepository) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := r.redisClient.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", model.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("读取任务失败: %w", err)
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("反序列化任务失败: %w", err)
	}
	return &job, nil
}

// Update 只覆盖已存在的任务，并刷新过期时间。
func (r *redisJobRepository) Update(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}
	ok, err := r.redisClient.SetXX(ctx, jobKey(job.JobID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("更新任务失败: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, job.JobID)
	}
	return nil
}

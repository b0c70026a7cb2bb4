// Package repository 提供了导入任务状态的持久化实现。
package repository

import (
	"context"
	"errors"
	"fmt"

	"docingest-go/internal/model"

	"gorm.io/gorm"
)

// JobRepository 定义了导入任务的存取接口。实现必须返回副本，调用方修改返回值不影响已存储的状态。
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error
}

// gormJobRepository 是 JobRepository 的 MySQL 实现。
type gormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository 创建 MySQL 任务存储，并自动迁移 ingest_jobs 表。
func NewGormJobRepository(db *gorm.DB) (JobRepository, error) {
	if err := db.AutoMigrate(&model.Job{}); err != nil {
		return nil, fmt.Errorf("迁移 ingest_jobs 表失败: %w", err)
	}
	return &gormJobRepository{db: db}, nil
}

func (r *gormJobRepository) Create(ctx context.Context, job *model.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *gormJobRepository) Get(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Update 整行覆盖写入，包括零值字段。
func (r *gormJobRepository) Update(ctx context.Context, job *model.Job) error {
	res := r.db.WithContext(ctx).Model(&model.Job{}).Where("job_id = ?", job.JobID).Select("*").Omit("created_at").Updates(job)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, job.JobID)
	}
	return nil
}

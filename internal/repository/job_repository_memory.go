package repository

import (
	"context"
	"fmt"
	"sync"

	"docingest-go/internal/model"
)

// memoryJobRepository 把任务保存在进程内存中，进程重启后任务丢失。
type memoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryJobRepository 创建内存任务存储。
func NewMemoryJobRepository() JobRepository {
	return &memoryJobRepository{jobs: make(map[string]*model.Job)}
}

func (r *memoryJobRepository) Create(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.JobID]; ok {
		return fmt.Errorf("%w: 任务 %s 已存在", model.ErrInvalidArgument, job.JobID)
	}
	r.jobs[job.JobID] = job.Clone()
	return nil
}

func (r *memoryJobRepository) Get(_ context.Context, jobID string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrJobNotFound, jobID)
	}
	return job.Clone(), nil
}

func (r *memoryJobRepository) Update(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.JobID]; !ok {
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, job.JobID)
	}
	r.jobs[job.JobID] = job.Clone()
	return nil
}

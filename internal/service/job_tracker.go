package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"docingest-go/internal/model"
	"docingest-go/internal/pipeline"
	"docingest-go/internal/repository"
	"docingest-go/pkg/log"
)

// jobTracker 在一次任务执行期间持有任务状态，所有修改在锁内完成并立即持久化快照。
type jobTracker struct {
	mu   sync.Mutex
	repo repository.JobRepository
	job  *model.Job
	now  func() time.Time
}

func newJobTracker(repo repository.JobRepository, job *model.Job, now func() time.Time) *jobTracker {
	return &jobTracker{repo: repo, job: job, now: now}
}

func (t *jobTracker) update(ctx context.Context, mutate func(job *model.Job)) {
	// 持久化也放在锁内，保证存储中的快照按修改顺序写入
	t.mu.Lock()
	defer t.mu.Unlock()
	mutate(t.job)
	t.job.UpdatedAt = t.now()
	snapshot := t.job.Clone()
	if err := t.repo.Update(ctx, snapshot); err != nil {
		log.Errorf("[IngestService] 持久化任务 %s 状态失败: %v", snapshot.JobID, err)
	}
}

func (t *jobTracker) running(ctx context.Context) {
	t.update(ctx, func(job *model.Job) {
		job.Status = model.JobStatusRunning
	})
}

func (t *jobTracker) setTotal(ctx context.Context, total int) {
	t.update(ctx, func(job *model.Job) {
		job.FilesTotal = total
	})
}

// record 记录单个文件的处理结果。失败只影响该文件，不改变任务状态。
func (t *jobTracker) record(ctx context.Context, file model.FileReference, res *pipeline.FileResult, err error) {
	t.update(ctx, func(job *model.Job) {
		job.FilesProcessed++
		if err != nil {
			job.FilesFailed++
			job.Errors = append(job.Errors, model.JobError{FileID: file.ID, Message: fileErrorMessage(file, err)})
			return
		}
		if res.Skipped {
			job.FilesSkipped++
			return
		}
		job.PagesProcessed += res.Pages
		job.ChunksUpserted += res.Chunks
	})
}

func (t *jobTracker) complete(ctx context.Context) {
	t.update(ctx, func(job *model.Job) {
		job.Status = model.JobStatusCompleted
		done := t.now()
		job.CompletedAt = &done
	})
}

// fail 把任务标记为失败，用于前置条件（连接、集合、文件发现）失败的情况。
func (t *jobTracker) fail(ctx context.Context, err error) {
	t.update(ctx, func(job *model.Job) {
		job.Status = model.JobStatusFailed
		job.Errors = append(job.Errors, model.JobError{Message: err.Error()})
		done := t.now()
		job.CompletedAt = &done
	})
}

func (t *jobTracker) snapshot() *model.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job.Clone()
}

func fileErrorMessage(file model.FileReference, err error) string {
	var fpe *model.FileProcessingError
	if errors.As(err, &fpe) {
		return fpe.Stage + ": " + fpe.Err.Error()
	}
	if file.Name != "" {
		return file.Name + ": " + err.Error()
	}
	return err.Error()
}

package repository

import (
	"context"
	"testing"
	"time"

	"docingest-go/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteJobRepository(t *testing.T) JobRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库只存在于单个连接上
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo, err := NewGormJobRepository(db)
	require.NoError(t, err)
	return repo
}

func newMiniRedisJobRepository(t *testing.T, ttl time.Duration) (JobRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisJobRepository(client, ttl), mr
}

func sampleJob(id string) *model.Job {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return &model.Job{
		JobID:        id,
		Tenant:       "acme",
		ConnectionID: "conn-acme",
		FolderIDs:    []string{"root"},
		Mode:         model.IngestModeIncremental,
		Status:       model.JobStatusPending,
		Errors:       []model.JobError{},
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

// exerciseJobRepository 覆盖所有实现共同遵守的行为。
func exerciseJobRepository(t *testing.T, repo JobRepository) {
	ctx := t.Context()
	job := sampleJob("job-1")
	require.NoError(t, repo.Create(ctx, job))

	got, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Tenant)
	assert.Equal(t, model.JobStatusPending, got.Status)
	assert.Equal(t, []string{"root"}, got.FolderIDs)

	// 整行覆盖：计数归零等零值也要写入
	got.Status = model.JobStatusRunning
	got.FilesTotal = 5
	got.FilesProcessed = 2
	got.FilesFailed = 1
	got.Errors = []model.JobError{{FileID: "f3", Message: "extract: broken"}}
	require.NoError(t, repo.Update(ctx, got))

	stored, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, stored.Status)
	assert.Equal(t, 5, stored.FilesTotal)
	assert.Equal(t, 2, stored.FilesProcessed)
	assert.Equal(t, []model.JobError{{FileID: "f3", Message: "extract: broken"}}, stored.Errors)

	stored.FilesFailed = 0
	done := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stored.Status = model.JobStatusCompleted
	stored.CompletedAt = &done
	require.NoError(t, repo.Update(ctx, stored))

	final, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 0, final.FilesFailed)
	assert.Equal(t, model.JobStatusCompleted, final.Status)
	require.NotNil(t, final.CompletedAt)
	assert.True(t, done.Equal(*final.CompletedAt))
	assert.True(t, job.CreatedAt.Equal(final.CreatedAt), "created_at is never overwritten")

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrJobNotFound)
	assert.ErrorIs(t, repo.Update(ctx, sampleJob("missing")), model.ErrJobNotFound)
}

func TestMemoryJobRepository(t *testing.T) {
	exerciseJobRepository(t, NewMemoryJobRepository())
}

func TestGormJobRepository(t *testing.T) {
	exerciseJobRepository(t, newSQLiteJobRepository(t))
}

func TestGormJobRepositoryKeepsCreatedAt(t *testing.T) {
	repo := newSQLiteJobRepository(t)
	ctx := t.Context()
	job := sampleJob("job-2")
	require.NoError(t, repo.Create(ctx, job))

	update := job.Clone()
	update.CreatedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	update.Status = model.JobStatusRunning
	require.NoError(t, repo.Update(ctx, update))

	got, err := repo.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, model.JobStatusRunning, got.Status)
}

func TestRedisJobRepository(t *testing.T) {
	repo, _ := newMiniRedisJobRepository(t, time.Hour)
	exerciseJobRepository(t, repo)
}

func TestRedisJobRepositoryCreateIsExclusive(t *testing.T) {
	repo, mr := newMiniRedisJobRepository(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleJob("job-1")))
	assert.ErrorIs(t, repo.Create(ctx, sampleJob("job-1")), model.ErrInvalidArgument)

	assert.True(t, mr.Exists(jobKey("job-1")))
	assert.Equal(t, time.Hour, mr.TTL(jobKey("job-1")))
}

func TestRedisJobRepositoryExpires(t *testing.T) {
	repo, mr := newMiniRedisJobRepository(t, 0)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleJob("job-1")))
	assert.Equal(t, DefaultJobTTL, mr.TTL(jobKey("job-1")))

	mr.FastForward(DefaultJobTTL + time.Second)
	_, err := repo.Get(ctx, "job-1")
	assert.ErrorIs(t, err, model.ErrJobNotFound)
	// 过期后 SetXX 不会重新创建任务
	assert.ErrorIs(t, repo.Update(ctx, sampleJob("job-1")), model.ErrJobNotFound)
	assert.False(t, mr.Exists(jobKey("job-1")))
}

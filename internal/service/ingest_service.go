// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"docingest-go/internal/config"
	"docingest-go/internal/model"
	"docingest-go/internal/pipeline"
	"docingest-go/internal/repository"
	"docingest-go/pkg/filestore"
	"docingest-go/pkg/log"
	"docingest-go/pkg/tasks"
	"docingest-go/pkg/vectorstore"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// DefaultBatchSize 是单批并发处理的文件数。
const DefaultBatchSize = 5

// FileProcessor 处理单个文件。
type FileProcessor interface {
	Process(ctx context.Context, task pipeline.FileTask) (*pipeline.FileResult, error)
}

// Dispatcher 把已创建的任务交给执行方，例如 Kafka。
type Dispatcher interface {
	Dispatch(ctx context.Context, task tasks.IngestTask) error
}

// IngestService 接口定义了导入任务相关的业务操作。
type IngestService interface {
	// Start 校验请求并创建 pending 状态的任务，立即返回任务 ID。
	Start(ctx context.Context, req model.IngestRequest) (string, error)
	// GetStatus 返回任务的当前快照。
	GetStatus(ctx context.Context, jobID string) (*model.Job, error)
	// Run 同步执行任务直到终态。
	Run(ctx context.Context, task tasks.IngestTask) error
}

// IngestOption 配置 IngestService。
type IngestOption func(*ingestService)

// WithDispatcher 使用外部分发器（如 Kafka）代替进程内 goroutine 执行任务。
func WithDispatcher(d Dispatcher) IngestOption {
	return func(s *ingestService) { s.dispatcher = d }
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) IngestOption {
	return func(s *ingestService) { s.now = now }
}

type ingestService struct {
	jobs            repository.JobRepository
	resolver        filestore.ConnectionResolver
	files           filestore.FileStore
	store           vectorstore.Store
	processor       FileProcessor
	batchSize       int
	discoverTimeout time.Duration
	dispatcher      Dispatcher
	now             func() time.Time
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(
	jobs repository.JobRepository,
	resolver filestore.ConnectionResolver,
	files filestore.FileStore,
	store vectorstore.Store,
	processor FileProcessor,
	cfg config.IngestConfig,
	opts ...IngestOption,
) IngestService {
	s := &ingestService{
		jobs:            jobs,
		resolver:        resolver,
		files:           files,
		store:           store,
		processor:       processor,
		batchSize:       cfg.BatchSize,
		discoverTimeout: cfg.DiscoverTimeout,
		now:             time.Now,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ingestService) Start(ctx context.Context, req model.IngestRequest) (string, error) {
	tenant, err := model.NormalizeTenant(req.Tenant)
	if err != nil {
		return "", err
	}
	mode := req.Mode
	if mode == "" {
		mode = model.IngestModeIncremental
	}
	if mode != model.IngestModeFull && mode != model.IngestModeIncremental {
		return "", fmt.Errorf("%w: 未知的导入模式 %q", model.ErrInvalidArgument, mode)
	}
	if req.ConnectionID == "" {
		return "", fmt.Errorf("%w: connection_id 不能为空", model.ErrInvalidArgument)
	}
	if _, err := s.connection(ctx, tenant, req.ConnectionID); err != nil {
		return "", err
	}

	now := s.now()
	job := &model.Job{
		JobID:        uuid.NewString(),
		Tenant:       tenant,
		ConnectionID: req.ConnectionID,
		FolderIDs:    append([]string(nil), req.FolderIDs...),
		Mode:         mode,
		Status:       model.JobStatusPending,
		Errors:       []model.JobError{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("创建导入任务失败: %w", err)
	}
	log.Infof("[IngestService] 已创建导入任务, JobID: %s, Tenant: %s, Connection: %s, Mode: %s, Folders: %v",
		job.JobID, tenant, req.ConnectionID, mode, job.FolderIDs)

	task := tasks.IngestTask{
		JobID:        job.JobID,
		Tenant:       tenant,
		ConnectionID: req.ConnectionID,
		FolderIDs:    job.FolderIDs,
		Mode:         string(mode),
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, task); err != nil {
			newJobTracker(s.jobs, job, s.now).fail(ctx, err)
			return "", err
		}
		return job.JobID, nil
	}

	// 任务的生命周期不跟随发起请求的 ctx
	runCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.Run(runCtx, task); err != nil {
			log.Errorf("[IngestService] 任务 %s 执行出错: %v", task.JobID, err)
		}
	}()
	return job.JobID, nil
}

func (s *ingestService) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: job_id 不能为空", model.ErrInvalidArgument)
	}
	return s.jobs.Get(ctx, jobID)
}

// Run 执行任务：确保集合存在、发现文件、按批处理。单个文件失败只记录在任务中。
// 只有任务存储本身不可用时才返回错误。
func (s *ingestService) Run(ctx context.Context, task tasks.IngestTask) error {
	job, err := s.jobs.Get(ctx, task.JobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		log.Warnf("[IngestService] 任务 %s 已处于终态 %s, 不再执行", job.JobID, job.Status)
		return nil
	}

	tracker := newJobTracker(s.jobs, job, s.now)
	tracker.running(ctx)
	log.Infof("[IngestService] 任务 %s 开始执行", job.JobID)

	files, stored, conn, err := s.prepare(ctx, job)
	if err != nil {
		log.Errorf("[IngestService] 任务 %s 前置步骤失败: %v", job.JobID, err)
		tracker.fail(ctx, err)
		return nil
	}
	tracker.setTotal(ctx, len(files))
	log.Infof("[IngestService] 任务 %s 发现 %d 个文件, 批大小: %d", job.JobID, len(files), s.batchSize)

	pool, err := ants.NewPool(s.batchSize)
	if err != nil {
		tracker.fail(ctx, fmt.Errorf("创建工作池失败: %w", err))
		return nil
	}
	defer pool.Release()

	for start := 0; start < len(files); start += s.batchSize {
		end := min(start+s.batchSize, len(files))
		var wg sync.WaitGroup
		for _, file := range files[start:end] {
			ft := pipeline.FileTask{
				Tenant:     job.Tenant,
				Connection: conn,
				File:       file,
				Mode:       job.Mode,
				StoredHash: stored[file.ID],
			}
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				res, err := s.process(ctx, ft)
				tracker.record(ctx, ft.File, res, err)
			})
			if submitErr != nil {
				wg.Done()
				tracker.record(ctx, file, nil, submitErr)
			}
		}
		wg.Wait()
		log.Infof("[IngestService] 任务 %s 已完成 %d/%d 个文件", job.JobID, end, len(files))
	}

	tracker.complete(ctx)
	final := tracker.snapshot()
	log.Infof("[IngestService] 任务 %s 完成: 处理 %d, 失败 %d, 跳过 %d, 写入分块 %d",
		final.JobID, final.FilesProcessed, final.FilesFailed, final.FilesSkipped, final.ChunksUpserted)
	return nil
}

// process 处理单个文件，并把 panic 转换为该文件的失败，保证每个文件都会被计数。
func (s *ingestService) process(ctx context.Context, ft pipeline.FileTask) (res *pipeline.FileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[IngestService] 处理文件 %s 时发生 panic: %v\n%s", ft.File.ID, r, debug.Stack())
			res = nil
			err = &model.FileProcessingError{FileID: ft.File.ID, Stage: model.StagePanic, Err: fmt.Errorf("%v", r)}
		}
	}()
	return s.processor.Process(ctx, ft)
}

// prepare 完成任务开始前的所有前置步骤，返回待处理文件和已入库文档的 sha256。
func (s *ingestService) prepare(ctx context.Context, job *model.Job) ([]model.FileReference, map[string]string, filestore.Connection, error) {
	conn, err := s.connection(ctx, job.Tenant, job.ConnectionID)
	if err != nil {
		return nil, nil, conn, err
	}
	if err := s.store.EnsureCollection(ctx, job.Tenant); err != nil {
		return nil, nil, conn, fmt.Errorf("创建集合失败: %w", err)
	}

	discoverCtx := ctx
	if s.discoverTimeout > 0 {
		var cancel context.CancelFunc
		discoverCtx, cancel = context.WithTimeout(ctx, s.discoverTimeout)
		defer cancel()
	}
	files, err := s.files.ListFiles(discoverCtx, conn, job.FolderIDs)
	if err != nil {
		return nil, nil, conn, fmt.Errorf("发现文件失败: %w", err)
	}
	files = dedupeFiles(files)

	stored := make(map[string]string)
	if job.Mode == model.IngestModeIncremental {
		docs, err := s.store.ListDocuments(ctx, job.Tenant)
		if err != nil {
			return nil, nil, conn, fmt.Errorf("读取已入库文档失败: %w", err)
		}
		for _, d := range docs {
			stored[d.DocID] = d.SHA256
		}
	}
	return files, stored, conn, nil
}

// connection 解析连接并确认其属于该租户。
func (s *ingestService) connection(ctx context.Context, tenant, connectionID string) (filestore.Connection, error) {
	conn, err := s.resolver.Resolve(ctx, connectionID)
	if err != nil {
		return conn, err
	}
	if conn.Tenant != tenant {
		return filestore.Connection{}, fmt.Errorf("%w: 连接 %s 不属于租户 %s", model.ErrInvalidArgument, connectionID, tenant)
	}
	return conn, nil
}

func dedupeFiles(files []model.FileReference) []model.FileReference {
	seen := make(map[string]struct{}, len(files))
	out := files[:0:0]
	for _, f := range files {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docingest-go/internal/config"
	"docingest-go/internal/handler"
	"docingest-go/internal/pipeline"
	"docingest-go/internal/repository"
	"docingest-go/internal/service"
	"docingest-go/pkg/database"
	"docingest-go/pkg/embedding"
	"docingest-go/pkg/filestore"
	"docingest-go/pkg/log"
	"docingest-go/pkg/ocr"
	"docingest-go/pkg/tika"
	"docingest-go/pkg/vectorstore"
)

// app 持有一次进程生命周期内的全部组件。
type app struct {
	cfg       *config.Config
	store     vectorstore.Store
	jobs      repository.JobRepository
	ingest    service.IngestService
	search    service.SearchService
	documents service.DocumentService
	checks    map[string]handler.HealthCheck
	closers   []func()
}

// loadConfig 读取配置并初始化日志。
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	return cfg, nil
}

// buildApp 按依赖顺序组装各个组件。opts 会传给导入服务。
func buildApp(ctx context.Context, cfg *config.Config, opts ...service.IngestOption) (*app, error) {
	a := &app{cfg: cfg, checks: make(map[string]handler.HealthCheck)}

	// 1. 向量存储
	store, err := newVectorStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.checks["vector_store"] = store.Ping

	// 2. Embedding 客户端
	embeddingClient, err := embedding.NewClient(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("初始化 Embedding 客户端失败: %w", err)
	}

	// 3. 文本提取：Tika + OCR 回退链
	tikaClient := tika.NewClient(cfg.Tika)
	a.checks["tika"] = tikaClient.Ping
	chain, err := newOCRChain(cfg.OCR, tikaClient)
	if err != nil {
		return nil, err
	}
	renderer := ocr.NewPdftoppm(cfg.OCR.PdftoppmPath, cfg.OCR.DPI, ocr.ExecRunner{})
	extractor := pipeline.NewExtractor(tikaClient, renderer, chain)
	chunker := pipeline.NewChunker(
		pipeline.WithChunkSize(cfg.Ingest.ChunkSize),
		pipeline.WithChunkOverlap(cfg.Ingest.ChunkOverlap),
	)

	// 4. 文件源
	resolver, err := filestore.NewStaticResolver(cfg.Connections)
	if err != nil {
		return nil, err
	}
	files := filestore.NewRouter().Register(filestore.ProviderGoogleDrive, filestore.NewDriveStore(cfg.Google))
	if cfg.MinIO.Endpoint != "" {
		minioClient, err := filestore.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		files.Register(filestore.ProviderMinIO, filestore.NewMinIOStore(minioClient))
	}

	// 5. 任务存储
	if err := a.openJobStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// 6. 业务服务
	processor := pipeline.NewProcessor(files, extractor, chunker, embeddingClient, store, cfg.Ingest)
	a.ingest = service.NewIngestService(a.jobs, resolver, files, store, processor, cfg.Ingest, opts...)
	a.search = service.NewSearchService(embeddingClient, store)
	a.documents = service.NewDocumentService(store, cfg.Elasticsearch.CollectionPrefix)

	log.Infof("组件初始化完成, 向量存储: %s, 任务存储: %s, OCR 引擎: %v",
		cfg.VectorStore.Provider, cfg.JobStore.Driver, chain.Engines())
	return a, nil
}

func newVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	switch strings.ToLower(cfg.VectorStore.Provider) {
	case "memory":
		log.Warnf("使用内存向量存储, 数据不会持久化")
		return vectorstore.NewMemoryStore(cfg.Elasticsearch.CollectionPrefix, cfg.Embedding.Dimensions), nil
	case "elasticsearch":
		client, err := vectorstore.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			return nil, err
		}
		return vectorstore.NewElasticsearchStore(client, cfg.Elasticsearch.CollectionPrefix, cfg.Embedding.Dimensions), nil
	default:
		return nil, fmt.Errorf("未知的向量存储 %q", cfg.VectorStore.Provider)
	}
}

func newOCRChain(cfg config.OCRConfig, tikaClient *tika.Client) (*ocr.Chain, error) {
	engines := make([]ocr.Engine, 0, len(cfg.Engines))
	for _, name := range cfg.Engines {
		switch strings.ToLower(name) {
		case "tesseract":
			engines = append(engines, ocr.NewTesseract(cfg.TesseractPath, cfg.Language, ocr.ExecRunner{}))
		case "tika":
			engines = append(engines, ocr.NewTikaEngine(tikaClient, cfg.Language, cfg.TikaConfidence))
		default:
			return nil, fmt.Errorf("未知的 OCR 引擎 %q", name)
		}
	}
	return ocr.NewChain(ocr.MinConfidence(cfg.MinConfidence), engines...), nil
}

func (a *app) openJobStore(ctx context.Context) error {
	switch strings.ToLower(a.cfg.JobStore.Driver) {
	case "memory":
		a.jobs = repository.NewMemoryJobRepository()
	case "redis":
		rdb, err := database.OpenRedis(ctx, a.cfg.Database.Redis)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.checks["job_store"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		a.jobs = repository.NewRedisJobRepository(rdb, time.Duration(a.cfg.JobStore.TTLHours)*time.Hour)
	case "mysql":
		db, err := database.OpenMySQL(a.cfg.Database.MySQL.DSN)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
		a.checks["job_store"] = sqlDB.PingContext
		if a.jobs, err = repository.NewGormJobRepository(db); err != nil {
			return err
		}
	default:
		return fmt.Errorf("未知的任务存储 %q", a.cfg.JobStore.Driver)
	}
	return nil
}

// Close 释放数据库连接等资源。
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

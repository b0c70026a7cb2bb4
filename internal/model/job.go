package model

import "time"

// JobStatus 是导入任务的状态，只能按 pending -> running -> completed/failed 单向流转。
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal 判断状态是否为终态。
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IngestMode 决定是否跳过内容未变化的文件。
type IngestMode string

const (
	IngestModeFull        IngestMode = "full"
	IngestModeIncremental IngestMode = "incremental"
)

// JobError 记录单个文件的失败原因。FileID 为空表示任务级前置条件失败。
type JobError struct {
	FileID  string `json:"file_id"`
	Message string `json:"message"`
}

// Job 对应 ingest_jobs 表，同时也是 Redis / 内存任务存储中的 JSON 结构。
type Job struct {
	JobID          string     `gorm:"type:varchar(36);primaryKey" json:"job_id"`
	Tenant         string     `gorm:"type:varchar(64);index;not null" json:"tenant"`
	ConnectionID   string     `gorm:"type:varchar(128)" json:"connection_id"`
	FolderIDs      []string   `gorm:"serializer:json;type:text" json:"folder_ids"`
	Mode           IngestMode `gorm:"type:varchar(16);not null" json:"mode"`
	Status         JobStatus  `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	FilesTotal     int        `gorm:"not null;default:0" json:"files_total"`
	FilesProcessed int        `gorm:"not null;default:0" json:"files_processed"`
	FilesFailed    int        `gorm:"not null;default:0" json:"files_failed"`
	FilesSkipped   int        `gorm:"not null;default:0" json:"files_skipped"`
	PagesProcessed int        `gorm:"not null;default:0" json:"pages_processed"`
	ChunksUpserted int        `gorm:"not null;default:0" json:"chunks_upserted"`
	Errors         []JobError `gorm:"serializer:json;type:mediumtext" json:"errors"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Job) TableName() string {
	return "ingest_jobs"
}

// Clone 返回任务的深拷贝，用于对外暴露只读快照。
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.FolderIDs = append([]string(nil), j.FolderIDs...)
	c.Errors = append([]JobError(nil), j.Errors...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// IngestRequest 是启动一次导入任务的参数。
type IngestRequest struct {
	Tenant       string     `json:"tenant"`
	ConnectionID string     `json:"connection_id"`
	FolderIDs    []string   `json:"folder_ids"`
	Mode         IngestMode `json:"mode"`
}

// Package tasks 定义了通过 Kafka 分发的任务结构。
package tasks

// IngestTask 是一次导入任务的执行参数，任务状态本身保存在任务存储中。
type IngestTask struct {
	JobID        string   `json:"job_id"`
	Tenant       string   `json:"tenant"`
	ConnectionID string   `json:"connection_id"`
	FolderIDs    []string `json:"folder_ids"`
	Mode         string   `json:"mode"`
}

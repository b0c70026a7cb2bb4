// Package model 定义了流水线、任务和检索使用的数据结构。
package model

// FileReference 标识文件源中的一个文件，由文件源实现产生，流水线只读。
type FileReference struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
	ContentHash string `json:"content_hash,omitempty"` // sha256，文件源能提供时填写
}

// Page 是提取器输出的单页文本，PageNumber 从 1 开始。
type Page struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"extraction_confidence"`
	OCR        bool    `json:"ocr"`
	Engine     string  `json:"engine,omitempty"`
}

// Chunk 是嵌入和检索的基本单元，持久化后以 Point 的形式存在于向量库中。
type Chunk struct {
	Tenant     string    `json:"tenant"`
	DocID      string    `json:"doc_id"`
	Title      string    `json:"title"`
	SourcePath string    `json:"drive_path"`
	MimeType   string    `json:"mime_type"`
	PageNumber int       `json:"page"`
	ChunkIndex int       `json:"chunk_idx"`
	SHA256     string    `json:"sha256"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// DocumentSummary 是 ListDocuments 按 doc_id 聚合的结果。
type DocumentSummary struct {
	DocID      string `json:"doc_id"`
	Title      string `json:"title"`
	SourcePath string `json:"drive_path"`
	MimeType   string `json:"mime_type"`
	SHA256     string `json:"sha256"`
	ChunkCount int    `json:"chunk_count"`
	PageCount  int    `json:"page_count"`
}

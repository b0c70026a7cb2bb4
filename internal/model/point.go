package model

// PointPayload 是写入向量库的分块元数据，字段名是对外的存储契约。
type PointPayload struct {
	PointID   string `json:"point_id"`
	Tenant    string `json:"tenant"`
	DocID     string `json:"doc_id"`
	Title     string `json:"title"`
	DrivePath string `json:"drive_path"`
	MimeType  string `json:"mime_type"`
	Page      int    `json:"page"`
	ChunkIdx  int    `json:"chunk_idx"`
	SHA256    string `json:"sha256"`
	Text      string `json:"text"`
}

// Point 代表向量库中的一条记录。
type Point struct {
	ID      string
	Vector  []float32
	Payload PointPayload
}

// ScoredPoint 是相似度检索返回的一条命中。
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload PointPayload
}

// PayloadFromChunk 把分块转换为向量库载荷。
func PayloadFromChunk(pointID string, c Chunk) PointPayload {
	return PointPayload{
		PointID:   pointID,
		Tenant:    c.Tenant,
		DocID:     c.DocID,
		Title:     c.Title,
		DrivePath: c.SourcePath,
		MimeType:  c.MimeType,
		Page:      c.PageNumber,
		ChunkIdx:  c.ChunkIndex,
		SHA256:    c.SHA256,
		Text:      c.Text,
	}
}

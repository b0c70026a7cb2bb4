package model

// SearchRequest 是语义检索请求。TopK 为 nil 时使用默认值，ScoreThreshold 为 nil 时不过滤。
type SearchRequest struct {
	Tenant         string   `json:"tenant"`
	Query          string   `json:"query"`
	TopK           *int     `json:"top_k,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
}

// SearchMetadata 是每条检索结果携带的来源信息。
type SearchMetadata struct {
	Title    string `json:"title"`
	Page     int    `json:"page"`
	DocID    string `json:"doc_id"`
	ChunkIdx int    `json:"chunk_idx"`
	Source   string `json:"source"`
}

// SearchResult 是单条检索结果。
type SearchResult struct {
	Text     string         `json:"text"`
	Metadata SearchMetadata `json:"metadata"`
	Score    float64        `json:"score"`
}

// SearchResponse 是检索接口的返回结构。
type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	Query        string         `json:"query"`
	Tenant       string         `json:"tenant"`
}

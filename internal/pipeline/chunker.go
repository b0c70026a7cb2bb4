package pipeline

import (
	"strings"
	"unicode"

	"docingest-go/internal/model"
)

const (
	// DefaultChunkSize 是每个分块的默认最大字符数（按 rune 计）。
	DefaultChunkSize = 1000
	// DefaultChunkOverlap 是相邻分块之间默认重叠的字符数。
	DefaultChunkOverlap = 200
	// maxBoundaryLookback 是向前寻找断句位置的最大距离。
	maxBoundaryLookback = 100
)

// PageChunk 是分块器的输出，ChunkIndex 在每一页内从 0 开始。
type PageChunk struct {
	PageNumber int
	ChunkIndex int
	Text       string
}

// Chunker 以滑动窗口把每页文本切成固定大小、相互重叠的分块。
type Chunker struct {
	size     int
	overlap  int
	lookback int
}

// ChunkerOption 配置 Chunker。
type ChunkerOption func(*Chunker)

// WithChunkSize 设置分块大小。
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithChunkOverlap 设置相邻分块的重叠字符数。
func WithChunkOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker 创建分块器。重叠不小于分块大小时回退为分块大小的四分之一。
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	c.lookback = c.size / 5
	if c.lookback > maxBoundaryLookback {
		c.lookback = maxBoundaryLookback
	}
	return c
}

// Size 返回分块大小。
func (c *Chunker) Size() int { return c.size }

// Overlap 返回重叠字符数。
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk 逐页切分文本，空白页不产生分块。
func (c *Chunker) Chunk(pages []model.Page) []PageChunk {
	var out []PageChunk
	for _, p := range pages {
		for i, text := range c.Split(p.Text) {
			out = append(out, PageChunk{PageNumber: p.PageNumber, ChunkIndex: i, Text: text})
		}
	}
	return out
}

// Split 切分单页文本。相邻分块恰好重叠 overlap 个字符，
// 因此去掉后续分块的前 overlap 个字符再拼接即可还原原文。
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)
	if n <= c.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for {
		end := start + c.size
		if end >= n {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		cut := c.boundary(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))
		start = cut - c.overlap
	}
	return chunks
}

// boundary 在 (start+overlap, end] 范围内、距 end 不超过 lookback 的位置寻找切分点：
// 优先句末，其次空白，都没有时在 end 处硬切。
func (c *Chunker) boundary(runes []rune, start, end int) int {
	floor := end - c.lookback
	if minCut := start + c.overlap + 1; floor < minCut {
		floor = minCut
	}

	for i := end; i >= floor; i-- {
		if isSentenceEnd(runes, start, i) {
			return i
		}
	}
	for i := end; i >= floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// isSentenceEnd 判断 runes[:i] 是否以句末标点（可带一个空白）结尾。
func isSentenceEnd(runes []rune, start, i int) bool {
	last := runes[i-1]
	switch last {
	case '。', '！', '？', '\n':
		return true
	}
	if !unicode.IsSpace(last) || i-2 < start {
		return false
	}
	switch runes[i-2] {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

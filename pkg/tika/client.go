// Package tika 提供了一个与 Apache Tika 服务器交互的客户端。
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docingest-go/internal/config"
	"docingest-go/pkg/log"

	"golang.org/x/net/html"
)

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(cfg config.TikaConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ExtractText 调用 Tika 提取纯文本。
func (c *Client) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	body, err := c.put(ctx, data, contentType, "text/plain", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ExtractPages 以 XHTML 形式调用 Tika，并按 <div class="page"> 拆分出每一页的文本。
// 对于没有分页结构的格式，整篇文本作为一页返回。
func (c *Client) ExtractPages(ctx context.Context, data []byte, contentType string) ([]string, error) {
	body, err := c.put(ctx, data, contentType, "text/html", nil)
	if err != nil {
		return nil, err
	}
	return SplitPages(body)
}

// OCRImage 请求 Tika 对单张图片执行 OCR。
func (c *Client) OCRImage(ctx context.Context, image []byte, contentType, language string) (string, error) {
	headers := map[string]string{}
	if language != "" {
		headers["X-Tika-OCRLanguage"] = language
	}
	body, err := c.put(ctx, image, contentType, "text/plain", headers)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Ping 检查 Tika 服务是否可用。
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/tika", nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Tika 返回错误 [%d]", resp.StatusCode)
	}
	return nil
}

func (c *Client) put(ctx context.Context, data []byte, contentType, accept string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取 Tika 响应失败: %w", err)
	}
	log.Debugf("[TikaClient] 提取完成, content_type: %s, accept: %s, 响应大小: %d 字节", contentType, accept, len(body))
	return body, nil
}

// SplitPages 解析 Tika 的 XHTML 输出，返回每个 page div 内的文本。
func SplitPages(xhtml []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(xhtml))
	if err != nil {
		return nil, fmt.Errorf("解析 Tika XHTML 失败: %w", err)
	}

	var pages []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "page") {
			var b strings.Builder
			collectText(n, &b)
			pages = append(pages, strings.TrimSpace(b.String()))
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	if len(pages) > 0 {
		return pages, nil
	}

	var b strings.Builder
	if body := findElement(doc, "body"); body != nil {
		collectText(body, &b)
	} else {
		collectText(doc, &b)
	}
	return []string{strings.TrimSpace(b.String())}, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

// 块级元素结束时补一个换行，保持段落边界。
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" || n.Data == "head" {
			return
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte('\n')
	}
}

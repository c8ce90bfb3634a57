package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

const (
	// DefaultFetchTimeout 默认单次请求超时
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxBodySize 默认响应体上限, 单个sitemap未压缩时最大50MB
	DefaultMaxBodySize = 64 * 1024 * 1024
)

// FetcherOptions 静态请求配置
type FetcherOptions struct {
	Timeout     time.Duration // 单次请求超时
	Insecure    bool          // 跳过TLS证书验证
	MaxBodySize int           // 响应体上限(字节), 0 使用 DefaultMaxBodySize, 负数不限制
}

// Document 一次成功请求得到的文档
type Document struct {
	URL         string // 请求地址
	FinalURL    string // 跟随重定向后的地址
	StatusCode  int
	ContentType string
	Body        []byte // 已解压
}

// Fetcher 基于Colly的同步请求器
// sitemap、页面和robots.txt都通过它获取
type Fetcher struct {
	collector      *colly.Collector
	headerProvider models.HeaderProvider
	maxBodySize    int
}

// NewFetcher 创建请求器, headerProvider 可以为nil
func NewFetcher(opts FetcherOptions, headerProvider models.HeaderProvider) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.Insecure,
		},
	}

	// 克隆出的collector共享访问记录,同一URL必须允许重复请求
	c := colly.NewCollector(colly.AllowURLRevisit())
	// 保留Colly自带的重定向检查和cookie jar,只替换transport
	c.WithTransport(transport)
	c.SetRequestTimeout(opts.Timeout)
	switch {
	case opts.MaxBodySize == 0:
		opts.MaxBodySize = DefaultMaxBodySize
	case opts.MaxBodySize < 0:
		opts.MaxBodySize = 0
	}
	// Colly 超出上限时静默截断
	c.MaxBodySize = opts.MaxBodySize

	utils.Debugf("请求器: 超时=%s, 跳过证书验证=%v, 响应体上限=%d", opts.Timeout, opts.Insecure, opts.MaxBodySize)

	return &Fetcher{
		collector:      c,
		headerProvider: headerProvider,
		maxBodySize:    opts.MaxBodySize,
	}
}

// Fetch 获取URL内容
// 传输失败和非2xx状态都返回 ErrNetwork 类错误
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.collector.Clone()
	c.Context = ctx

	var (
		doc         *Document
		headerErr   error
		truncateErr error
		status      int
	)

	c.OnRequest(func(r *colly.Request) {
		if f.headerProvider == nil {
			return
		}
		headers, err := f.headerProvider.GetHeaders()
		if err != nil {
			headerErr = err
			r.Abort()
			return
		}
		for name, values := range headers {
			for i, value := range values {
				if i == 0 {
					r.Headers.Set(name, value)
				} else {
					r.Headers.Add(name, value)
				}
			}
		}
	})

	c.OnResponse(func(r *colly.Response) {
		if f.maxBodySize > 0 && len(r.Body) == f.maxBodySize {
			truncateErr = fmt.Errorf("响应体达到上限 %d 字节, 内容可能被截断", f.maxBodySize)
			return
		}
		encoding := r.Headers.Get("Content-Encoding")
		body, err := decodeBody(encoding, r.Body)
		if err != nil {
			utils.Warnf("解压响应失败 [%s] (编码=%s): %v", rawURL, encoding, err)
			body = r.Body
		}
		doc = &Document{
			URL:         rawURL,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        body,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		utils.Debugf("请求失败 [%s] 状态=%d: %v", rawURL, r.StatusCode, err)
	})

	err := c.Visit(rawURL)
	if headerErr != nil {
		return nil, fmt.Errorf("获取HTTP头部失败: %w", headerErr)
	}
	if truncateErr != nil {
		return nil, models.NewNetworkError("fetch", rawURL, truncateErr)
	}
	if err != nil {
		if status != 0 {
			err = fmt.Errorf("HTTP %d: %w", status, err)
		}
		return nil, models.NewNetworkError("fetch", rawURL, err)
	}
	if doc == nil {
		return nil, models.NewNetworkError("fetch", rawURL, fmt.Errorf("没有收到响应"))
	}
	return doc, nil
}

// Get 只返回响应体
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	doc, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return doc.Body, nil
}

// decodeBody 按Content-Encoding解压响应体
// Colly会自行解开gzip但保留响应头,所以gzip只在数据仍带gzip魔数时处理
func decodeBody(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch {
	case encoding == "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case encoding == "deflate":
		// 大多数服务器发送zlib封装的deflate,少数发送裸deflate
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			if decompressed, err := io.ReadAll(zr); err == nil {
				return decompressed, nil
			}
		}
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		decompressed, err := io.ReadAll(fr)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case isGzip(body):
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil
	}

	return body, nil
}

func isGzip(body []byte) bool {
	return len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b
}

package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
)

// RenderMode 页面获取模式
type RenderMode string

const (
	ModeStatic  RenderMode = "static"  // 直接获取HTML并解析,不执行脚本
	ModeDynamic RenderMode = "dynamic" // 在真实浏览器中渲染后查询
)

// ParseRenderMode 解析模式字符串
func ParseRenderMode(s string) (RenderMode, error) {
	switch RenderMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStatic, "":
		return ModeStatic, nil
	case ModeDynamic:
		return ModeDynamic, nil
	}
	return "", NewInvalidInputError("mode", s, fmt.Errorf("模式必须是 static 或 dynamic"))
}

// SearchConfig 单站点搜索配置
type SearchConfig struct {
	// 发现
	URL          string `json:"url"`           // sitemap地址或爬取起始页
	Crawl        bool   `json:"crawl"`         // true: 从起始页爬取链接; false: 解析sitemap
	ForceRefresh bool   `json:"force_refresh"` // 忽略已缓存的链接集合
	LinkSelector string `json:"link_selector"` // 爬取时提取链接的选择器
	CacheDir     string `json:"cache_dir"`     // 链接集合/robots缓存目录

	// robots
	RespectRobots bool   `json:"respect_robots"` // 按robots规则过滤发现的链接
	RobotsAgent   string `json:"robots_agent"`   // 匹配的User-agent

	// 搜索
	Limit              int        `json:"limit"`               // 最多搜索的页面数,0表示不限
	Selectors          []string   `json:"selectors"`           // 选择器列表
	Mode               RenderMode `json:"mode"`                // 获取模式
	CaptureScreenshots bool       `json:"capture_screenshots"` // 为每个命中元素截图(仅dynamic)
	ScreenshotDir      string     `json:"screenshot_dir"`      // 截图目录
	WaitTime           int        `json:"wait_time"`           // 动态页面加载后等待(秒)
	Timeout            int        `json:"timeout"`             // 单次请求/导航超时(秒)
	RateLimit          float64    `json:"rate_limit"`          // 每秒请求数,0表示不限
	Headless           bool       `json:"headless"`            // 无头浏览器

	// 输出
	OutputFileName     string `json:"output_file_name"`     // 输出文件名
	OutputDir          string `json:"output_dir"`           // 输出目录
	ShowElementDetails bool   `json:"show_element_details"` // 输出完整元素信息
	ShowHTML           bool   `json:"show_html"`            // 输出元素html
}

// Validate 验证配置
func (c *SearchConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return NewInvalidInputError("config", "url", fmt.Errorf("必须提供sitemap或起始页URL"))
	}
	if err := ValidateURL(c.URL); err != nil {
		return NewInvalidInputError("config", c.URL, err)
	}
	if len(c.Selectors) == 0 {
		return NewInvalidInputError("config", "selectors", fmt.Errorf("至少需要一个选择器"))
	}
	if c.Limit < 0 {
		return NewInvalidInputError("config", "limit", fmt.Errorf("页面数限制不能为负数"))
	}
	if c.Mode != ModeStatic && c.Mode != ModeDynamic {
		return NewInvalidInputError("config", string(c.Mode), fmt.Errorf("模式必须是 static 或 dynamic"))
	}
	if c.WaitTime < 0 || c.WaitTime > 60 {
		return NewInvalidInputError("config", "wait_time", fmt.Errorf("等待时间必须在0-60秒之间"))
	}
	if c.Timeout < 0 {
		return NewInvalidInputError("config", "timeout", fmt.Errorf("超时时间不能为负数"))
	}
	if c.RateLimit < 0 {
		return NewInvalidInputError("config", "rate_limit", fmt.Errorf("请求速率不能为负数"))
	}
	return nil
}

// SearchTask 搜索任务
type SearchTask struct {
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	TargetURL   string     `json:"target_url"`             // 目标URL
	Origin      string     `json:"origin"`                 // scheme://host[:port]
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	Config SearchConfig `json:"config"`
	Status TaskStatus   `json:"status"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewSearchTask 创建新任务
func NewSearchTask(config SearchConfig) (*SearchTask, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	parsed, _ := url.Parse(config.URL)

	return &SearchTask{
		ID:        generateID(),
		TargetURL: config.URL,
		Origin:    parsed.Scheme + "://" + parsed.Host,
		CreatedAt: time.Now(),
		Config:    config,
		Status:    TaskStatusPending,
	}, nil
}

// Start 标记任务开始
func (t *SearchTask) Start() {
	now := time.Now()
	t.StartedAt = &now
	t.Status = TaskStatusRunning
}

// Finish 标记任务结束,err非nil时为失败
func (t *SearchTask) Finish(err error) {
	now := time.Now()
	t.CompletedAt = &now
	if err != nil {
		t.Status = TaskStatusFailed
		t.ErrorMessage = err.Error()
		return
	}
	t.Status = TaskStatusCompleted
}

// ToJSON 序列化为JSON
func (t *SearchTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// FromJSON 从JSON反序列化
func (t *SearchTask) FromJSON(data []byte) error {
	return json.Unmarshal(data, t)
}

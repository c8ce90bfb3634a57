package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com", false},
		{"有效的HTTPS URL", "https://example.com", false},
		{"带路径的URL", "https://example.com/path/to/resource", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
		{"无协议", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOriginOfAndCacheBaseName(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		origin    string
		cacheName string
	}{
		{"HTTPS带路径", "https://example.com/sitemap.xml", "https://example.com", "example.com"},
		{"HTTP带端口", "http://127.0.0.1:8080/a/b", "http://127.0.0.1:8080", "127.0.0.1:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin, err := OriginOf(tt.url)
			if err != nil {
				t.Fatalf("OriginOf() error = %v", err)
			}
			if origin != tt.origin {
				t.Errorf("OriginOf() = %q, want %q", origin, tt.origin)
			}
			if got := CacheBaseName(origin); got != tt.cacheName {
				t.Errorf("CacheBaseName() = %q, want %q", got, tt.cacheName)
			}
		})
	}

	if _, err := OriginOf(""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("空URL应返回ErrInvalidInput, got %v", err)
	}
	if got := SitemapFilename("https://example.com"); got != "example.com.sitemap.json" {
		t.Errorf("SitemapFilename() = %q", got)
	}
	if got := RobotsFilename("https://example.com"); got != "example.com.robots.json" {
		t.Errorf("RobotsFilename() = %q", got)
	}
}

func TestSearchError_Is(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"网络错误", NewNetworkError("fetch", "https://x.com", cause), ErrNetwork},
		{"解析错误", NewParseError("sitemap", "https://x.com/sitemap.xml", cause), ErrParse},
		{"无效输入", NewInvalidInputError("robots", "", cause), ErrInvalidInput},
		{"清理失败", NewCleanupError("close_page", "https://x.com", cause), ErrResourceCleanup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("外层: %w", tt.err)
			if !errors.Is(wrapped, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.target)
			}
			if !errors.Is(wrapped, cause) {
				t.Errorf("应能通过Unwrap找到底层错误")
			}
			if errors.Is(tt.err, ErrNetwork) && tt.target != ErrNetwork {
				t.Errorf("类别不应互相匹配")
			}
		})
	}
}

func TestSearchConfig_Validate(t *testing.T) {
	valid := SearchConfig{
		URL:       "https://example.com/sitemap.xml",
		Selectors: []string{".sources"},
		Mode:      ModeStatic,
		Timeout:   30,
	}

	tests := []struct {
		name    string
		mutate  func(c *SearchConfig)
		wantErr bool
	}{
		{"有效配置", func(c *SearchConfig) {}, false},
		{"缺少URL", func(c *SearchConfig) { c.URL = "" }, true},
		{"URL协议无效", func(c *SearchConfig) { c.URL = "ftp://example.com" }, true},
		{"缺少选择器", func(c *SearchConfig) { c.Selectors = nil }, true},
		{"负数限制", func(c *SearchConfig) { c.Limit = -1 }, true},
		{"未知模式", func(c *SearchConfig) { c.Mode = "spa" }, true},
		{"等待时间过大", func(c *SearchConfig) { c.WaitTime = 61 }, true},
		{"负数速率", func(c *SearchConfig) { c.RateLimit = -0.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("配置错误应归类为ErrInvalidInput: %v", err)
			}
		})
	}
}

func TestParseRenderMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RenderMode
		wantErr bool
	}{
		{"", ModeStatic, false},
		{"static", ModeStatic, false},
		{"Dynamic", ModeDynamic, false},
		{"spa", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRenderMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRenderMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNewSearchTask(t *testing.T) {
	task, err := NewSearchTask(SearchConfig{
		URL:       "https://example.com:8443/sitemap.xml",
		Selectors: []string{"h1"},
		Mode:      ModeStatic,
	})
	if err != nil {
		t.Fatalf("NewSearchTask() error = %v", err)
	}

	if task.ID == "" {
		t.Error("任务ID不应为空")
	}
	if task.Origin != "https://example.com:8443" {
		t.Errorf("Origin = %v", task.Origin)
	}
	if task.Status != TaskStatusPending {
		t.Errorf("Status = %v, want %v", task.Status, TaskStatusPending)
	}

	task.Start()
	if task.Status != TaskStatusRunning || task.StartedAt == nil {
		t.Errorf("Start() 后状态应为running")
	}
	task.Finish(fmt.Errorf("sitemap不可达"))
	if task.Status != TaskStatusFailed || task.ErrorMessage == "" {
		t.Errorf("Finish(err) 后状态应为failed")
	}

	data, err := task.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var decoded SearchTask
	if err := decoded.FromJSON(data); err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if decoded.ID != task.ID || decoded.Config.URL != task.Config.URL {
		t.Errorf("解码后的任务不匹配")
	}
}

func TestSiteSearchResult_TotalMatches(t *testing.T) {
	site := NewSiteSearchResult()
	if site.TotalMatches() != 0 {
		t.Fatalf("空结果的命中数应为0")
	}

	site.Push(&PageSearchResult{URL: "https://x.com/1", Elements: make([]ElementMatch, 2)})
	if site.TotalMatches() != 2 {
		t.Errorf("TotalMatches() = %d, want 2", site.TotalMatches())
	}

	// 追加后重新计算
	site.Push(&PageSearchResult{URL: "https://x.com/3", Elements: make([]ElementMatch, 3)})
	site.Push(nil)
	if site.TotalMatches() != 5 {
		t.Errorf("TotalMatches() = %d, want 5", site.TotalMatches())
	}
	if site.Len() != 2 {
		t.Errorf("Len() = %d, want 2", site.Len())
	}
	if site.Pages()[0].URL != "https://x.com/1" || site.Pages()[1].URL != "https://x.com/3" {
		t.Errorf("页面顺序应与追加顺序一致")
	}
}

func TestElementMatch_OmitsEmptyAttributes(t *testing.T) {
	tests := []struct {
		name     string
		match    ElementMatch
		wantAttr bool
	}{
		{"无属性", ElementMatch{Tag: "p", InnerText: "hi", Selector: "p"}, false},
		{"有属性", ElementMatch{Tag: "a", Attributes: map[string]string{"href": "/"}, Selector: "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.match)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if got := strings.Contains(string(data), `"attributes"`); got != tt.wantAttr {
				t.Errorf("attributes字段存在 = %v, want %v (%s)", got, tt.wantAttr, data)
			}
		})
	}
}

func TestSearchReport_JSON(t *testing.T) {
	site := NewSiteSearchResult()
	site.Push(&PageSearchResult{
		URL:           "https://x.com/",
		Elements:      []ElementMatch{{Tag: "div", InnerText: "a", Selector: ".sources"}},
		UsedSelectors: []string{".sources"},
	})

	report := NewSearchReport([]string{".sources", "h1"}, 3, site)
	data, err := report.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	for _, key := range []string{`"cssSelector"`, `"totalPagesSearched": 3`, `"totalMatches": 1`, `"pagesWithSelector"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("报告中缺少 %s: %s", key, data)
		}
	}
	if strings.Contains(string(data), "unusedSelectors") {
		t.Errorf("空的unusedSelectors不应输出")
	}

	var decoded SearchReport
	if err := decoded.FromJSON(data); err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if decoded.CSSSelector != ".sources, h1" || len(decoded.PagesWithSelector) != 1 {
		t.Errorf("解码后的报告不匹配: %+v", decoded)
	}
}

func TestCliHeaders_Parse(t *testing.T) {
	tests := []struct {
		name    string
		headers CliHeaders
		wantErr bool
	}{
		{"正常头部", CliHeaders{"Authorization: Bearer x", "X-Test:1"}, false},
		{"值中含冒号", CliHeaders{"Referer: https://x.com/a"}, false},
		{"缺少冒号", CliHeaders{"Broken"}, true},
		{"名称为空", CliHeaders{": value"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := tt.headers.Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.name == "值中含冒号" && h.Get("Referer") != "https://x.com/a" {
				t.Errorf("Referer = %q", h.Get("Referer"))
			}
		})
	}
}

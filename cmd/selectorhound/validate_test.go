package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestValidateFlags(t *testing.T) {
	valid := SearchFlags{
		URL:       "https://example.com/sitemap.xml",
		Selectors: []string{".sources"},
		WaitTime:  1,
		Timeout:   30,
	}

	tests := []struct {
		name    string
		modify  func(*SearchFlags)
		wantErr bool
	}{
		{"有效参数", func(f *SearchFlags) {}, false},
		{"只有URL文件", func(f *SearchFlags) { f.URL = ""; f.URLFile = "urls.txt" }, false},
		{"URL和URL文件同时指定", func(f *SearchFlags) { f.URLFile = "urls.txt" }, true},
		{"都未指定", func(f *SearchFlags) { f.URL = "" }, true},
		{"非HTTP协议", func(f *SearchFlags) { f.URL = "ftp://example.com" }, true},
		{"没有选择器", func(f *SearchFlags) { f.Selectors = nil }, true},
		{"负数限制", func(f *SearchFlags) { f.Limit = -1 }, true},
		{"等待时间过长", func(f *SearchFlags) { f.WaitTime = 61 }, true},
		{"负数超时", func(f *SearchFlags) { f.Timeout = -1 }, true},
		{"负数速率", func(f *SearchFlags) { f.RateLimit = -0.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := valid
			tt.modify(&flags)
			if err := ValidateFlags(flags); (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"完整URL", "https://example.com/sitemap.xml", "https://example.com/sitemap.xml"},
		{"缺少协议", "example.com/sitemap.xml", "https://example.com/sitemap.xml"},
		{"HTTP保持不变", "http://localhost:8080/", "http://localhost:8080/"},
		{"去掉空白", "  https://example.com/ ", "https://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveSelectors(t *testing.T) {
	cssPath := filepath.Join(t.TempDir(), "styles.css")
	css := `.banner { color: red; }
h1, .title { margin: 0; }
@media (max-width: 600px) { .sources { display: none; } }`
	if err := os.WriteFile(cssPath, []byte(css), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := resolveSelectors(".sources, h1", cssPath)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{".sources", "h1", ".banner", ".title"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("resolveSelectors() = %q, want %q", got, want)
	}

	onlyCSS, err := resolveSelectors("", cssPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyCSS) != 4 {
		t.Errorf("只用CSS文件时 = %q", onlyCSS)
	}

	if _, err := resolveSelectors("", filepath.Join(t.TempDir(), "missing.css")); err == nil {
		t.Error("CSS文件不存在时应返回错误")
	}
}

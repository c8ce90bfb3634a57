package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/selectorhound/internal/models"
)

func urlset(locs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<url><loc>%s</loc></url>", loc)
	}
	b.WriteString("</urlset>")
	return b.String()
}

func sitemapIndex(locs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<sitemap><loc>%s</loc></sitemap>", loc)
	}
	b.WriteString("</sitemapindex>")
	return b.String()
}

// hitCounter 记录每个路径的请求次数
type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (h *hitCounter) inc(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits[path]++
}

func (h *hitCounter) get(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

// xmlServer 按路径返回固定XML, 文档中的 {{base}} 替换为服务器地址
func xmlServer(t *testing.T, docs map[string]string) (*httptest.Server, *hitCounter) {
	t.Helper()
	hits := &hitCounter{hits: make(map[string]int)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.inc(r.URL.Path)
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(strings.ReplaceAll(body, "{{base}}", "http://"+r.Host)))
	}))
	t.Cleanup(server.Close)
	return server, hits
}

func TestParseSitemap(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		kind    SitemapKind
		locs    int
		wantErr bool
	}{
		{"叶子sitemap", urlset("https://x.com/a", " https://x.com/b \n"), SitemapURLSet, 2, false},
		{"sitemap索引", sitemapIndex("https://x.com/s1.xml"), SitemapIndex, 1, false},
		{"空urlset", urlset(), SitemapURLSet, 0, false},
		{"不是sitemap", "<html><body>hi</body></html>", 0, 0, true},
		{"不是XML", "not xml at all <<<", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseSitemap("https://x.com/sitemap.xml", []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSitemap() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, models.ErrParse) {
					t.Errorf("应返回ErrParse, got %v", err)
				}
				return
			}
			if doc.Kind != tt.kind || len(doc.Locs) != tt.locs {
				t.Errorf("ParseSitemap() = %v %v", doc.Kind, doc.Locs)
			}
		})
	}
}

func TestSitemapResolver_IndexUnion(t *testing.T) {
	server, _ := xmlServer(t, map[string]string{
		"/sitemap.xml": sitemapIndex("{{base}}/s1.xml", "{{base}}/s2.xml"),
		"/s1.xml":      urlset("{{base}}/p1", "{{base}}/p2", "{{base}}/p3"),
		"/s2.xml":      urlset("{{base}}/p4", "{{base}}/p5", "{{base}}/p6", "{{base}}/p7"),
	})
	base := server.URL

	fetcher := NewFetcher(FetcherOptions{Timeout: 5 * time.Second}, nil)
	locs, err := NewSitemapResolver(fetcher, nil).Resolve(context.Background(), base+"/sitemap.xml")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(locs) != 7 {
		t.Fatalf("Resolve() 返回 %d 个地址, want 7: %v", len(locs), locs)
	}
	if locs[0] != base+"/p1" || locs[6] != base+"/p7" {
		t.Errorf("顺序应与sitemap一致: %v", locs)
	}
}

func TestSitemapResolver_CycleAndFailures(t *testing.T) {
	// a 和 b 互相引用, 同时引用一个不存在的子sitemap; 部分子地址使用相对路径
	server, hits := xmlServer(t, map[string]string{
		"/a.xml":    sitemapIndex("/b.xml", "/missing.xml", "/leaf.xml"),
		"/b.xml":    sitemapIndex("{{base}}/a.xml", "/leaf.xml"),
		"/leaf.xml": urlset("{{base}}/p1", "{{base}}/p2", "{{base}}/p1"),
	})
	base := server.URL

	resolver := NewSitemapResolver(NewFetcher(FetcherOptions{Timeout: 5 * time.Second}, nil), nil)
	locs, err := resolver.Resolve(context.Background(), base+"/a.xml")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(locs) != 2 {
		t.Errorf("Resolve() = %v, want 2 个去重后的地址", locs)
	}
	for _, path := range []string{"/a.xml", "/b.xml", "/leaf.xml", "/missing.xml"} {
		if hits.get(path) != 1 {
			t.Errorf("%s 被请求 %d 次, want 1", path, hits.get(path))
		}
	}
	if resolver.Visited() != 4 {
		t.Errorf("Visited() = %d, want 4", resolver.Visited())
	}
}

func TestSitemapResolver_RootFailure(t *testing.T) {
	docs := map[string]string{"/html.xml": "<html><body>not a sitemap</body></html>"}
	server, _ := xmlServer(t, docs)
	resolver := NewSitemapResolver(NewFetcher(FetcherOptions{Timeout: 5 * time.Second}, nil), nil)

	if _, err := resolver.Resolve(context.Background(), server.URL+"/none.xml"); !errors.Is(err, models.ErrNetwork) {
		t.Errorf("根sitemap不存在应返回ErrNetwork, got %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), server.URL+"/html.xml"); !errors.Is(err, models.ErrParse) {
		t.Errorf("根文档不是sitemap应返回ErrParse, got %v", err)
	}
}

func TestSitemapResolver_LargeSitemap(t *testing.T) {
	// 超过Colly默认的10MB上限
	const count = 260000
	locs := make([]string, count)
	for i := range locs {
		locs[i] = fmt.Sprintf("{{base}}/articles/%d", i)
	}
	server, _ := xmlServer(t, map[string]string{"/sitemap.xml": urlset(locs...)})

	resolver := NewSitemapResolver(NewFetcher(FetcherOptions{Timeout: 30 * time.Second}, nil), nil)
	got, err := resolver.Resolve(context.Background(), server.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != count {
		t.Fatalf("Resolve() 返回 %d 个地址, want %d", len(got), count)
	}
	if got[count-1] != fmt.Sprintf("%s/articles/%d", server.URL, count-1) {
		t.Errorf("最后一个地址 = %q", got[count-1])
	}
}

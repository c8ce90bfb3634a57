package crawlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/selectorhound/internal/models"
)

// siteServer 按路径返回固定HTML, {{base}} 替换为服务器地址, 未登记的路径返回500
func siteServer(t *testing.T, pages map[string]string) (*httptest.Server, *hitCounter) {
	t.Helper()
	hits := &hitCounter{hits: make(map[string]int)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.inc(r.URL.Path)
		body, ok := pages[r.URL.Path]
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(strings.ReplaceAll(body, "{{base}}", "http://"+r.Host)))
	}))
	t.Cleanup(server.Close)
	return server, hits
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

func newTestFrontier(t *testing.T, origin, cacheDir string, useCache bool, filter LinkFilter) *Frontier {
	t.Helper()
	fetcher := NewFetcher(FetcherOptions{Timeout: 5 * time.Second}, nil)
	frontier, err := NewFrontier(FrontierOptions{
		Origin:   origin,
		CacheDir: cacheDir,
		UseCache: useCache,
	}, fetcher, nil, filter)
	if err != nil {
		t.Fatalf("NewFrontier() error = %v", err)
	}
	return frontier
}

func TestFrontier_CrawlFromPage_SameOriginOnly(t *testing.T) {
	server, _ := siteServer(t, map[string]string{
		"/": `<a href="/p1">1</a><a href="{{base}}/p2">2</a><a href="/p3">3</a>
			<a href="/p4">4</a><a href="{{base}}/p5">5</a>
			<a href="https://external.com/">外链1</a><a href="https://other.org/x">外链2</a>
			<a href="#top">锚点</a>`,
		"/p1": `<a href="/p2">回链</a>`,
		"/p2": `<p>无链接</p>`,
		"/p3": `<a href="https://external.com/y">外链</a>`,
		"/p4": `<a href="#">锚点</a>`,
		"/p5": ``,
	})

	frontier := newTestFrontier(t, server.URL, t.TempDir(), false, nil)
	links, err := frontier.CrawlFromPage(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("CrawlFromPage() error = %v", err)
	}

	want := []string{"/p1", "/p2", "/p3", "/p4", "/p5"}
	if links.Len() != len(want) {
		t.Fatalf("LinkSet = %v, want %d 个站内链接", links.List(), len(want))
	}
	for _, path := range want {
		if !links.Contains(server.URL + path) {
			t.Errorf("缺少 %s", path)
		}
	}
}

func TestFrontier_CrawlStopsAfterTwoHops(t *testing.T) {
	server, hits := siteServer(t, map[string]string{
		"/":     `<a href="/hop1">1</a><a href="/broken">坏链</a>`,
		"/hop1": `<a href="/hop2">2</a><a href="/">首页</a>`,
		"/hop2": `<a href="/hop3">3</a>`,
		"/hop3": ``,
	})

	frontier := newTestFrontier(t, server.URL, t.TempDir(), false, nil)
	links, err := frontier.CrawlFromPage(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("单个页面失败不应中止爬取: %v", err)
	}

	for _, path := range []string{"/hop1", "/broken", "/hop2", "/"} {
		if !links.Contains(server.URL + path) {
			t.Errorf("缺少 %s: %v", path, links.List())
		}
	}
	if links.Contains(server.URL + "/hop3") {
		t.Error("第三跳的链接不应被发现")
	}
	if hits.get("/hop2") != 0 {
		t.Error("第二跳发现的页面不应再被请求")
	}
	if hits.get("/") != 1 {
		t.Errorf("起始页被请求 %d 次, want 1", hits.get("/"))
	}
}

func TestFrontier_CrawlStartURLWithoutSlash(t *testing.T) {
	server, hits := siteServer(t, map[string]string{
		"/":   `<a href="/">首页</a><a href="/p1">1</a>`,
		"/p1": `<a href="{{base}}">首页</a>`,
	})

	frontier := newTestFrontier(t, server.URL, t.TempDir(), false, nil)
	links, err := frontier.CrawlFromPage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("CrawlFromPage() error = %v", err)
	}

	if links.Len() != 2 {
		t.Errorf("LinkSet = %v, want 2 个页面", links.List())
	}
	if hits.get("/") != 1 {
		t.Errorf("起始页被请求 %d 次, want 1", hits.get("/"))
	}
}

func TestFrontier_CrawlStartPageFailure(t *testing.T) {
	server, _ := siteServer(t, map[string]string{})
	frontier := newTestFrontier(t, server.URL, t.TempDir(), false, nil)

	if _, err := frontier.CrawlFromPage(context.Background(), server.URL+"/"); !errors.Is(err, models.ErrNetwork) {
		t.Errorf("起始页失败应返回ErrNetwork, got %v", err)
	}
}

func TestFrontier_ProduceUsesCache(t *testing.T) {
	server, hits := xmlServer(t, map[string]string{
		"/sitemap.xml": urlset("{{base}}/a", "{{base}}/b", "/c"),
	})
	dir := t.TempDir()
	ctx := context.Background()

	first := newTestFrontier(t, server.URL, dir, true, nil)
	pages, err := first.Produce(ctx, server.URL+"/sitemap.xml", false)
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if len(pages) != 3 || first.FromCache() {
		t.Fatalf("首次运行应从网络发现3个页面, got %v (fromCache=%v)", pages, first.FromCache())
	}
	if _, err := os.Stat(filepath.Join(dir, models.SitemapFilename(server.URL))); err != nil {
		t.Fatalf("缓存文件未写入: %v", err)
	}

	second := newTestFrontier(t, server.URL, dir, true, nil)
	cached, err := second.Produce(ctx, server.URL+"/sitemap.xml", false)
	if err != nil {
		t.Fatal(err)
	}
	if !second.FromCache() || len(cached) != 3 || cached[2] != server.URL+"/c" {
		t.Errorf("应使用缓存: %v (fromCache=%v)", cached, second.FromCache())
	}
	if hits.get("/sitemap.xml") != 1 {
		t.Errorf("使用缓存时不应请求sitemap, 共请求 %d 次", hits.get("/sitemap.xml"))
	}

	refresh := newTestFrontier(t, server.URL, dir, false, nil)
	if _, err := refresh.Produce(ctx, server.URL+"/sitemap.xml", false); err != nil {
		t.Fatal(err)
	}
	if refresh.FromCache() || hits.get("/sitemap.xml") != 2 {
		t.Error("关闭缓存时应重新请求sitemap")
	}
}

func TestFrontier_ProduceAppliesFilter(t *testing.T) {
	server, hits := siteServer(t, map[string]string{
		"/":       `<a href="/public">公开</a><a href="/admin/">后台</a>`,
		"/public": ``,
		"/admin/": `<a href="/admin/secret">秘密</a>`,
	})

	notAdmin := func(link string) bool { return !strings.Contains(link, "/admin/") }
	pacer := &countingPacer{}
	frontier, err := NewFrontier(FrontierOptions{Origin: server.URL, CacheDir: t.TempDir()},
		NewFetcher(FetcherOptions{Timeout: 5 * time.Second}, nil), pacer, notAdmin)
	if err != nil {
		t.Fatal(err)
	}

	pages, err := frontier.Produce(context.Background(), server.URL+"/", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 || pages[0] != server.URL+"/public" {
		t.Errorf("Produce() = %v, want 只有 /public", pages)
	}
	if hits.get("/admin/") != 0 {
		t.Error("被过滤的页面不应被爬取")
	}
	if pacer.waits != 2 {
		t.Errorf("每次请求前都应节流, Wait 调用 %d 次, want 2", pacer.waits)
	}
	// 缓存保存未过滤的集合
	if frontier.Links().Len() != 2 {
		t.Errorf("Links() = %v", frontier.Links().List())
	}
}

func TestNewFrontier_Validation(t *testing.T) {
	fetcher := NewFetcher(FetcherOptions{}, nil)
	if _, err := NewFrontier(FrontierOptions{}, fetcher, nil, nil); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("空站点源应返回ErrInvalidInput, got %v", err)
	}
	if _, err := NewFrontier(FrontierOptions{Origin: "https://x.com", LinkSelector: "a[href"}, fetcher, nil, nil); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("无效链接选择器应返回ErrInvalidInput, got %v", err)
	}
}
